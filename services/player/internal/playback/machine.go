package playback

import "time"

const DefaultNextThreshold = 30 * time.Second

// ErrPlayerClosed is the Errored message after the viewer closes the
// player. Switching server or track reopens it.
const ErrPlayerClosed = "player closed"

// Machine holds the tunables Transition needs. The zero value uses
// DefaultNextThreshold.
type Machine struct {
	// NextThreshold is how close to the end the next-episode prompt appears.
	NextThreshold time.Duration
}

// Transition applies e to s with the default Machine.
func Transition(s State, e Event) (State, []Command) {
	return Machine{}.Transition(s, e)
}

// Transition is pure: it returns the next state and the effects to run.
// Events for an epoch other than the current one leave s unchanged.
func (m Machine) Transition(s State, e Event) (State, []Command) {
	switch ev := e.(type) {
	case Open:
		return m.load(s, ev.Episode, normalize(ev.Option))

	case SwitchServer:
		cur, ok := SessionOf(s)
		if !ok || cur.Option.Server == ev.Server {
			return s, nil
		}
		opt := cur.Option
		opt.Server = ev.Server
		return m.load(s, cur.Episode, opt)

	case SwitchTrack:
		cur, ok := SessionOf(s)
		if !ok || cur.Option.Track == ev.Track {
			return s, nil
		}
		opt := cur.Option
		opt.Track = ev.Track
		return m.load(s, cur.Episode, opt)

	case SourcesResolved:
		l, ok := s.(Loading)
		if !ok || l.Epoch != ev.Epoch {
			return s, nil
		}
		src, found := ev.Result.Best()
		if !found {
			return fallback(l.Session, ev.Result.GuaranteedEmbedURL, ev.Result.AltEmbedURL, "no sources")
		}
		referer := ev.Result.Referer()
		return Playing{
			Session:     l.Session,
			Source:      src,
			Referer:     referer,
			EmbedURL:    ev.Result.GuaranteedEmbedURL,
			AltEmbedURL: ev.Result.AltEmbedURL,
		}, []Command{Attach{Epoch: l.Epoch, URL: src.URL, Referer: referer}}

	case ResolveFailed:
		l, ok := s.(Loading)
		if !ok || l.Epoch != ev.Epoch {
			return s, nil
		}
		return Errored{Session: l.Session, Err: ev.Err}, []Command{ShowError{Err: ev.Err}}

	case ManifestParsed:
		p, ok := s.(Playing)
		if !ok || p.Epoch != ev.Epoch || p.ManifestReady {
			return s, nil
		}
		p.ManifestReady = true
		return p, []Command{
			StartWatchdog{Epoch: p.Epoch},
			Resume{Epoch: p.Epoch, Episode: p.Episode},
			RecordProgress{Episode: p.Episode},
		}

	case Tick:
		p, ok := s.(Playing)
		if !ok || p.Epoch != ev.Epoch {
			return s, nil
		}
		return m.tick(p, ev)

	case StreamFailed:
		p, ok := s.(Playing)
		if !ok || p.Epoch != ev.Epoch {
			return s, nil
		}
		return fallback(p.Session, p.EmbedURL, p.AltEmbedURL, "stream error: "+ev.Err, Stop{})

	case WatchdogExpired:
		p, ok := s.(Playing)
		if !ok || p.Epoch != ev.Epoch || p.Advanced {
			return s, nil
		}
		if ev.Position > 0 {
			p.Advanced = true
			return p, nil
		}
		return fallback(p.Session, p.EmbedURL, p.AltEmbedURL, "playback stalled", Stop{})

	case CountdownExpired:
		p, ok := s.(Playing)
		if !ok || p.Epoch != ev.Epoch || p.Prompt != PromptShowing {
			return s, nil
		}
		p.Prompt = PromptDone
		return p, []Command{WithdrawNext{}, NavigateNext{From: p.Episode}}

	case Ended:
		p, ok := s.(Playing)
		if !ok || p.Epoch != ev.Epoch {
			return s, nil
		}
		cmds := []Command{ClearPosition{Episode: p.Episode}}
		if p.Prompt == PromptShowing {
			cmds = append(cmds, WithdrawNext{})
		}
		if p.Episode.HasNext && p.Prompt != PromptDone {
			cmds = append(cmds, NavigateNext{From: p.Episode})
		}
		p.Prompt = PromptDone
		return p, cmds

	case Closed:
		p, ok := s.(Playing)
		if !ok || p.Epoch != ev.Epoch {
			return s, nil
		}
		return Errored{Session: p.Session, Err: ErrPlayerClosed}, []Command{Stop{}, ShowError{Err: ErrPlayerClosed}}

	case SwitchEmbed:
		f, ok := s.(EmbedFallback)
		if !ok || f.AltURL == "" {
			return s, nil
		}
		f.URL, f.AltURL = f.AltURL, f.URL
		return f, []Command{ShowEmbed{Epoch: f.Epoch, URL: f.URL, Reason: "alternate host"}}

	case DismissNext:
		p, ok := s.(Playing)
		if !ok || p.Prompt != PromptShowing {
			return s, nil
		}
		p.Prompt = PromptDismissed
		return p, []Command{WithdrawNext{}}
	}
	return s, nil
}

func (m Machine) load(s State, ep Episode, opt Option) (State, []Command) {
	var epoch uint64
	if cur, ok := SessionOf(s); ok {
		epoch = cur.Epoch
	}
	next := Loading{Session: Session{Epoch: epoch + 1, Episode: ep, Option: opt}}
	var cmds []Command
	if s != nil {
		if _, idle := s.(Idle); !idle {
			cmds = append(cmds, Stop{})
		}
	}
	cmds = append(cmds, Resolve{Epoch: next.Epoch, EpisodeID: ep.EpisodeID, Option: opt})
	return next, cmds
}

func (m Machine) tick(p Playing, ev Tick) (State, []Command) {
	var cmds []Command
	// Once ended the stored position has been cleared and stays cleared.
	if p.Prompt == PromptDone {
		return p, nil
	}
	if ev.Position > 0 {
		if !p.Advanced {
			p.Advanced = true
			cmds = append(cmds, CancelWatchdog{})
		}
		cmds = append(cmds, SavePosition{Episode: p.Episode, Seconds: ev.Position})
	}
	threshold := m.NextThreshold
	if threshold <= 0 {
		threshold = DefaultNextThreshold
	}
	remaining := ev.Duration - ev.Position
	if p.Episode.HasNext && p.Prompt == PromptHidden && ev.Duration > 0 && ev.Position > 0 &&
		remaining <= threshold.Seconds() {
		p.Prompt = PromptShowing
		cmds = append(cmds, OfferNext{Epoch: p.Epoch, Episode: p.Episode})
	}
	return p, cmds
}

// fallback moves to EmbedFallback, or to Errored when there is no embed URL.
// The alternate host stands in when the primary URL is missing.
func fallback(sess Session, embedURL, altURL, reason string, pre ...Command) (State, []Command) {
	if embedURL == "" {
		embedURL, altURL = altURL, ""
	}
	if embedURL == "" {
		err := reason + ": no embed available"
		return Errored{Session: sess, Err: err}, append(pre, ShowError{Err: err})
	}
	return EmbedFallback{Session: sess, URL: embedURL, Reason: reason, AltURL: altURL},
		append(pre, ShowEmbed{Epoch: sess.Epoch, URL: embedURL, Reason: reason})
}

func normalize(o Option) Option {
	if o.Server != ServerB {
		o.Server = ServerA
	}
	if o.Track != TrackDub {
		o.Track = TrackSub
	}
	return o
}
