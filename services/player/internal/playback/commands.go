package playback

// Command is an effect requested by Transition and carried out by the
// Controller.
type Command interface{ command() }

// Stop tears down the current stream session and its timers.
type Stop struct{}

type Resolve struct {
	Epoch     uint64
	EpisodeID string
	Option    Option
}

// Attach opens a stream session on URL, relayed through the proxy with
// Referer.
type Attach struct {
	Epoch   uint64
	URL     string
	Referer string
}

type ShowEmbed struct {
	Epoch  uint64
	URL    string
	Reason string
}

type ShowError struct{ Err string }

type StartWatchdog struct{ Epoch uint64 }

type CancelWatchdog struct{}

// Resume seeks to the stored position for the episode when there is one.
type Resume struct {
	Epoch   uint64
	Episode Episode
}

type RecordProgress struct{ Episode Episode }

type SavePosition struct {
	Episode Episode
	Seconds float64
}

type ClearPosition struct{ Episode Episode }

// OfferNext shows the next-episode prompt and starts its countdown.
type OfferNext struct {
	Epoch   uint64
	Episode Episode
}

type WithdrawNext struct{}

type NavigateNext struct{ From Episode }

func (Stop) command()           {}
func (Resolve) command()        {}
func (Attach) command()         {}
func (ShowEmbed) command()      {}
func (ShowError) command()      {}
func (StartWatchdog) command()  {}
func (CancelWatchdog) command() {}
func (Resume) command()         {}
func (RecordProgress) command() {}
func (SavePosition) command()   {}
func (ClearPosition) command()  {}
func (OfferNext) command()      {}
func (WithdrawNext) command()   {}
func (NavigateNext) command()   {}
