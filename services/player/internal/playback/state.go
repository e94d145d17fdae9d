package playback

// State is one of Idle, Loading, Playing, EmbedFallback or Errored.
type State interface {
	Name() string
	state()
}

// Session is what every non-idle state is about. Epoch increases on each
// new load so that late results from an earlier load can be recognized.
type Session struct {
	Epoch   uint64
	Episode Episode
	Option  Option
}

type Idle struct{}

type Loading struct {
	Session
}

// Prompt is the next-episode affordance.
type Prompt int

const (
	PromptHidden Prompt = iota
	PromptShowing
	PromptDismissed
	PromptDone
)

type Playing struct {
	Session
	Source   Source
	Referer  string
	EmbedURL string
	// AltEmbedURL is a second embed host, possibly empty.
	AltEmbedURL string
	// ManifestReady is set once the stream's manifest has been parsed.
	ManifestReady bool
	// Advanced is set once playback time has moved past zero.
	Advanced bool
	Prompt   Prompt
}

type EmbedFallback struct {
	Session
	URL    string
	Reason string
	// AltURL is the embed not currently shown, if any.
	AltURL string
}

type Errored struct {
	Session
	Err string
}

func (Idle) Name() string          { return "idle" }
func (Loading) Name() string       { return "loading" }
func (Playing) Name() string       { return "playing" }
func (EmbedFallback) Name() string { return "embed_fallback" }
func (Errored) Name() string       { return "error" }

func (Idle) state()          {}
func (Loading) state()       {}
func (Playing) state()       {}
func (EmbedFallback) state() {}
func (Errored) state()       {}

// SessionOf returns the session of s; ok is false for Idle.
func SessionOf(s State) (Session, bool) {
	switch v := s.(type) {
	case Loading:
		return v.Session, true
	case Playing:
		return v.Session, true
	case EmbedFallback:
		return v.Session, true
	case Errored:
		return v.Session, true
	}
	return Session{}, false
}
