package playback

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	// Watchdog bounds how long playback may sit at zero after the manifest
	// is parsed before falling back to the embed.
	Watchdog       time.Duration
	SampleInterval time.Duration
	NextThreshold  time.Duration
	NextCountdown  time.Duration
	// ResumeMin is the smallest stored position worth seeking to.
	ResumeMin time.Duration
	UserID    string
	// Proxy wraps an upstream stream URL in a proxy URL. Nil plays URLs
	// directly.
	Proxy func(target, referer string) string
}

func (c Config) withDefaults() Config {
	if c.Watchdog <= 0 {
		c.Watchdog = 5 * time.Second
	}
	if c.SampleInterval <= 0 {
		c.SampleInterval = 5 * time.Second
	}
	if c.NextThreshold <= 0 {
		c.NextThreshold = DefaultNextThreshold
	}
	if c.NextCountdown <= 0 {
		c.NextCountdown = 10 * time.Second
	}
	if c.ResumeMin <= 0 {
		c.ResumeMin = 5 * time.Second
	}
	return c
}

type Deps struct {
	Resolver  SourceResolver
	Engine    Engine
	Embedder  Embedder
	Navigator Navigator
	Progress  ProgressStore
	Positions PositionStore
}

// attached hands a freshly opened session to the event loop.
type attached struct {
	epoch   uint64
	session StreamSession
}

func (attached) event() {}

// Controller runs Transition on a single goroutine and carries out the
// resulting commands.
type Controller struct {
	cfg     Config
	deps    Deps
	machine Machine
	log     *zap.Logger

	events chan Event
	done   chan struct{}

	mu    sync.RWMutex
	state State

	// Owned by the Run goroutine.
	session       StreamSession
	sessionCancel context.CancelFunc
	watchdog      *time.Timer
	countdown     *time.Timer
	prompting     bool
}

type ControllerOption func(*Controller)

func WithLogger(log *zap.Logger) ControllerOption { return func(c *Controller) { c.log = log } }

func NewController(cfg Config, deps Deps, opts ...ControllerOption) *Controller {
	cfg = cfg.withDefaults()
	c := &Controller{
		cfg:     cfg,
		deps:    deps,
		machine: Machine{NextThreshold: cfg.NextThreshold},
		log:     zap.NewNop(),
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
		state:   Idle{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Send queues e for the event loop. It returns immediately once Run has
// exited.
func (c *Controller) Send(e Event) {
	select {
	case c.events <- e:
	case <-c.done:
	}
}

// Run processes events until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.teardown()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-c.events:
			c.apply(ctx, e)
		}
	}
}

func (c *Controller) apply(ctx context.Context, e Event) {
	if a, ok := e.(attached); ok {
		c.adopt(ctx, a)
		return
	}
	prev := c.State()
	next, cmds := c.machine.Transition(prev, e)
	if next.Name() != prev.Name() {
		c.log.Info("playback state", zap.String("from", prev.Name()), zap.String("to", next.Name()))
	}
	c.mu.Lock()
	c.state = next
	c.mu.Unlock()
	for _, cmd := range cmds {
		c.exec(ctx, cmd)
	}
}

func (c *Controller) exec(ctx context.Context, cmd Command) {
	switch v := cmd.(type) {
	case Stop:
		c.closeSession()
		stopTimer(&c.watchdog)
		c.withdraw()

	case Resolve:
		go func() {
			res, err := c.deps.Resolver.Resolve(ctx, v.EpisodeID, v.Option)
			if err != nil {
				c.Send(ResolveFailed{Epoch: v.Epoch, Err: err.Error()})
				return
			}
			c.Send(SourcesResolved{Epoch: v.Epoch, Result: res})
		}()

	case Attach:
		target := v.URL
		if c.cfg.Proxy != nil {
			target = c.cfg.Proxy(v.URL, v.Referer)
		}
		go func() {
			sess, err := c.deps.Engine.Open(ctx, target)
			if err != nil {
				c.Send(StreamFailed{Epoch: v.Epoch, Err: err.Error()})
				return
			}
			c.Send(attached{epoch: v.Epoch, session: sess})
		}()

	case ShowEmbed:
		if c.deps.Embedder != nil {
			c.deps.Embedder.ShowEmbed(v.URL, v.Reason)
		}

	case ShowError:
		if c.deps.Embedder != nil {
			c.deps.Embedder.ShowError(v.Err)
		}

	case StartWatchdog:
		stopTimer(&c.watchdog)
		epoch, sess := v.Epoch, c.session
		c.watchdog = time.AfterFunc(c.cfg.Watchdog, func() {
			c.Send(WatchdogExpired{Epoch: epoch, Position: c.livePosition(ctx, sess)})
		})

	case CancelWatchdog:
		stopTimer(&c.watchdog)

	case Resume:
		c.resume(ctx, v.Episode)

	case RecordProgress:
		if c.deps.Progress == nil {
			return
		}
		if err := c.deps.Progress.SetProgress(ctx, c.cfg.UserID, v.Episode.SeriesID, v.Episode.Number); err != nil {
			c.log.Warn("progress save failed", zap.Error(err))
		}

	case SavePosition:
		if c.deps.Positions == nil {
			return
		}
		if err := c.deps.Positions.SavePosition(ctx, c.cfg.UserID, v.Episode.SeriesID, v.Episode.Number, v.Seconds); err != nil {
			c.log.Warn("position save failed", zap.Error(err))
		}

	case ClearPosition:
		if c.deps.Positions == nil {
			return
		}
		if err := c.deps.Positions.ClearPosition(ctx, c.cfg.UserID, v.Episode.SeriesID, v.Episode.Number); err != nil {
			c.log.Warn("position clear failed", zap.Error(err))
		}

	case OfferNext:
		c.prompting = true
		if c.deps.Navigator != nil {
			c.deps.Navigator.OfferNext(v.Episode, c.cfg.NextCountdown)
		}
		stopTimer(&c.countdown)
		epoch := v.Epoch
		c.countdown = time.AfterFunc(c.cfg.NextCountdown, func() { c.Send(CountdownExpired{Epoch: epoch}) })

	case WithdrawNext:
		c.withdraw()

	case NavigateNext:
		if c.deps.Navigator != nil {
			go c.deps.Navigator.Next(ctx, v.From)
		}
	}
}

// adopt keeps a newly opened session if it still belongs to the current
// Playing state and closes it otherwise.
func (c *Controller) adopt(ctx context.Context, a attached) {
	p, ok := c.State().(Playing)
	if !ok || p.Epoch != a.epoch {
		c.log.Debug("discarding stale stream session", zap.Uint64("epoch", a.epoch))
		_ = a.session.Close()
		return
	}
	c.closeSession()
	sctx, cancel := context.WithCancel(ctx)
	c.session, c.sessionCancel = a.session, cancel
	go c.pump(sctx, a.epoch, a.session)
	go c.sample(sctx, a.epoch, a.session)
}

func (c *Controller) pump(ctx context.Context, epoch uint64, sess StreamSession) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sess.Events():
			if !ok {
				if ctx.Err() == nil {
					c.Send(Closed{Epoch: epoch})
				}
				return
			}
			switch ev.Kind {
			case EngineLoaded:
				c.Send(ManifestParsed{Epoch: epoch})
			case EngineEnded:
				c.Send(Ended{Epoch: epoch})
			case EngineFailed:
				c.Send(StreamFailed{Epoch: epoch, Err: ev.Err})
			case EngineClosed:
				c.Send(Closed{Epoch: epoch})
			}
		}
	}
}

func (c *Controller) sample(ctx context.Context, epoch uint64, sess StreamSession) {
	t := time.NewTicker(c.cfg.SampleInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pos, dur, err := sess.Position(ctx)
			if err != nil {
				continue
			}
			c.Send(Tick{Epoch: epoch, Position: pos, Duration: dur})
		}
	}
}

// livePosition asks sess for its current playback time. Failures read as
// zero, which the watchdog treats as stalled.
func (c *Controller) livePosition(ctx context.Context, sess StreamSession) float64 {
	if sess == nil {
		return 0
	}
	pctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	pos, _, err := sess.Position(pctx)
	if err != nil {
		c.log.Debug("watchdog position read failed", zap.Error(err))
		return 0
	}
	return pos
}

func (c *Controller) resume(ctx context.Context, ep Episode) {
	if c.deps.Positions == nil || c.session == nil {
		return
	}
	pos, ok, err := c.deps.Positions.GetPosition(ctx, c.cfg.UserID, ep.SeriesID, ep.Number)
	if err != nil {
		c.log.Warn("position lookup failed", zap.Error(err))
		return
	}
	if !ok || pos <= c.cfg.ResumeMin.Seconds() {
		return
	}
	if err := c.session.Seek(ctx, pos); err != nil {
		c.log.Warn("resume seek failed", zap.Float64("position", pos), zap.Error(err))
	}
}

func (c *Controller) withdraw() {
	stopTimer(&c.countdown)
	if c.prompting && c.deps.Navigator != nil {
		c.deps.Navigator.WithdrawNext()
	}
	c.prompting = false
}

func (c *Controller) closeSession() {
	if c.sessionCancel != nil {
		c.sessionCancel()
		c.sessionCancel = nil
	}
	if c.session != nil {
		if err := c.session.Close(); err != nil {
			c.log.Debug("stream session close", zap.Error(err))
		}
		c.session = nil
	}
}

func (c *Controller) teardown() {
	c.closeSession()
	stopTimer(&c.watchdog)
	stopTimer(&c.countdown)
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
