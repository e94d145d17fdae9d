package playback

// Event is an input to Transition.
type Event interface{ event() }

// Open loads an episode: first mount or navigation to another episode.
type Open struct {
	Episode Episode
	Option  Option
}

type SwitchServer struct{ Server Server }

type SwitchTrack struct{ Track Track }

type SourcesResolved struct {
	Epoch  uint64
	Result Resolved
}

// ResolveFailed means the resolver itself could not be reached, so not even
// an embed URL is known.
type ResolveFailed struct {
	Epoch uint64
	Err   string
}

type ManifestParsed struct{ Epoch uint64 }

// Tick is a periodic playback position sample, in seconds.
type Tick struct {
	Epoch    uint64
	Position float64
	Duration float64
}

type StreamFailed struct {
	Epoch uint64
	Err   string
}

// WatchdogExpired carries the playback position read when the watchdog
// fired, so the stall decision does not depend on the sampling cadence.
type WatchdogExpired struct {
	Epoch    uint64
	Position float64
}

type CountdownExpired struct{ Epoch uint64 }

type Ended struct{ Epoch uint64 }

// Closed means the stream session went away without ending or failing,
// typically because the viewer closed the player window.
type Closed struct{ Epoch uint64 }

type DismissNext struct{}

// SwitchEmbed swaps the shown embed for the alternate host.
type SwitchEmbed struct{}

func (Open) event()             {}
func (SwitchServer) event()     {}
func (SwitchTrack) event()      {}
func (SourcesResolved) event()  {}
func (ResolveFailed) event()    {}
func (ManifestParsed) event()   {}
func (Tick) event()             {}
func (StreamFailed) event()     {}
func (WatchdogExpired) event()  {}
func (CountdownExpired) event() {}
func (Ended) event()            {}
func (Closed) event()           {}
func (DismissNext) event()      {}
func (SwitchEmbed) event()      {}
