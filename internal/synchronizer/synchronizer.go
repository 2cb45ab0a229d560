package synchronizer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/five82/dashsync/internal/clock"
	"github.com/five82/dashsync/internal/credential"
	"github.com/five82/dashsync/internal/dashboard"
	"github.com/five82/dashsync/internal/poll"
	"github.com/five82/dashsync/internal/push"
	"github.com/five82/dashsync/internal/reconnect"
	"github.com/five82/dashsync/internal/state"
	"github.com/five82/dashsync/internal/status"
	"github.com/five82/dashsync/internal/telemetry"
)

const fetchErrorFallback = "failed to fetch status"

// ErrNotRunning is returned when a request is posted after Run has exited.
var ErrNotRunning = errors.New("synchronizer loop is not running")

// Fetcher performs one poll. *poll.Poller implements it.
type Fetcher interface {
	Fetch(ctx context.Context, light bool) (status.Snapshot, error)
}

// Channel is a single push connection. *push.Channel implements it.
type Channel interface {
	Open(ctx context.Context)
	Close()
}

// ChannelFactory builds a push connection for url delivering events to h.
type ChannelFactory func(url string, h push.Handler) Channel

// Options configure a Synchronizer. Fetcher is required; everything else
// has a default.
type Options struct {
	Fetcher     Fetcher
	Store       *state.Store
	Credentials credential.Provider

	// PushURL builds the push endpoint for a token. Nil disables push.
	PushURL    func(token string) string
	NewChannel ChannelFactory

	Scheduler        clock.Scheduler
	Backoff          *reconnect.Linear
	Interval         time.Duration
	FullEvery        int
	InitialFullDelay time.Duration

	// Persist receives a copy of the snapshot after every successful full
	// fetch. It runs off the event loop.
	Persist func(status.Snapshot)

	Metrics *telemetry.SyncMetrics
	Logger  *slog.Logger
}

// Synchronizer keeps a Store fresh from the poll and push channels. All of
// its state is owned by the goroutine running Run; the exported methods
// post requests to it.
type Synchronizer struct {
	fetcher    Fetcher
	store      *state.Store
	creds      credential.Provider
	pushURL    func(string) string
	newChannel ChannelFactory
	sched      clock.Scheduler
	persist    func(status.Snapshot)
	metrics    *telemetry.SyncMetrics
	logger     *slog.Logger

	interval         time.Duration
	initialFullDelay time.Duration

	events  chan func()
	started chan struct{}
	done    chan struct{}

	// dispatch runs fn on the event loop; spawn runs blocking work off it.
	dispatch func(fn func()) bool
	spawn    func(fn func())

	// Loop-owned state below.
	autoRefresh bool
	gen         uint64
	ctx         context.Context
	cancel      context.CancelFunc
	cadence     poll.Cadence
	pollTimer   clock.Timer
	fullTimer   clock.Timer
	inflight    int
	ws          Channel
	wsID        uint64
	wsSeq       uint64
	supervisor  *reconnect.Supervisor
	session     string
}

// New validates opts and returns a stopped Synchronizer.
func New(opts Options) (*Synchronizer, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("synchronizer: fetcher is required")
	}
	s := &Synchronizer{
		fetcher:          opts.Fetcher,
		store:            opts.Store,
		creds:            opts.Credentials,
		pushURL:          opts.PushURL,
		newChannel:       opts.NewChannel,
		sched:            opts.Scheduler,
		persist:          opts.Persist,
		metrics:          opts.Metrics,
		logger:           opts.Logger,
		interval:         opts.Interval,
		initialFullDelay: opts.InitialFullDelay,
		events:           make(chan func(), 64),
		started:          make(chan struct{}),
		done:             make(chan struct{}),
	}
	if s.store == nil {
		s.store = &state.Store{}
	}
	if s.creds == nil {
		s.creds = credential.NewStatic("")
	}
	if s.newChannel == nil {
		s.newChannel = func(url string, h push.Handler) Channel { return push.New(url, h) }
	}
	if s.sched == nil {
		s.sched = clock.Real{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.interval <= 0 {
		s.interval = poll.DefaultInterval
	}
	if s.initialFullDelay <= 0 {
		s.initialFullDelay = poll.DefaultInitialFullDelay
	}
	s.cadence.FullEvery = opts.FullEvery
	s.supervisor = reconnect.NewSupervisor(s.sched, opts.Backoff, s.logger)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.dispatch = s.post
	s.spawn = func(fn func()) { go fn() }
	return s, nil
}

// Store returns the store this synchronizer writes to.
func (s *Synchronizer) Store() *state.Store { return s.store }

// Ready is closed once Run is processing requests.
func (s *Synchronizer) Ready() <-chan struct{} { return s.started }

// Run processes posted requests until ctx is done, then tears down. It must
// be called once.
func (s *Synchronizer) Run(ctx context.Context) error {
	defer close(s.done)
	close(s.started)
	for {
		select {
		case <-ctx.Done():
			s.teardown()
			s.cancel()
			return nil
		case fn := <-s.events:
			fn()
		}
	}
}

func (s *Synchronizer) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- fn:
		return true
	case <-s.done:
		return false
	}
}

// call runs fn on the loop and waits for it to finish. It returns
// ErrNotRunning before Run has started or after it has returned.
func (s *Synchronizer) call(fn func()) error {
	select {
	case <-s.started:
	default:
		return ErrNotRunning
	}
	ran := make(chan struct{})
	if !s.dispatch(func() {
		fn()
		close(ran)
	}) {
		return ErrNotRunning
	}
	select {
	case <-ran:
		return nil
	case <-s.done:
		select {
		case <-ran:
			return nil
		default:
			return ErrNotRunning
		}
	}
}

// Start performs a light fetch, schedules the first full fetch, opens the
// push channel and arms the poll timer. Starting a running synchronizer is
// a no-op.
func (s *Synchronizer) Start() error {
	return s.call(s.start)
}

// Stop cancels every timer, in-flight fetch and the push channel. When it
// returns no earlier callback can write to the store.
func (s *Synchronizer) Stop() error {
	return s.call(s.teardown)
}

// SetAutoRefresh starts or stops background updates.
func (s *Synchronizer) SetAutoRefresh(on bool) error {
	if on {
		return s.Start()
	}
	return s.Stop()
}

// AutoRefresh reports whether background updates are running.
func (s *Synchronizer) AutoRefresh() bool {
	var on bool
	if err := s.call(func() { on = s.autoRefresh }); err != nil {
		return false
	}
	return on
}

// Refresh requests an immediate fetch outside the regular cadence. It does
// not advance the tick counter.
func (s *Synchronizer) Refresh(light bool) bool {
	return s.dispatch(func() { s.fetch(light) })
}

// ApplyAction merges fields returned by an action endpoint. Action results
// are authoritative for the fields they carry.
func (s *Synchronizer) ApplyAction(fields status.Snapshot) bool {
	if len(fields) == 0 {
		return false
	}
	return s.dispatch(func() {
		s.store.Apply(status.Update{Origin: status.OriginAction, Fields: fields}, s.sched.Now())
	})
}

// CredentialsChanged reopens the push channel with the current token when
// it is not connected, restoring the full retry budget.
func (s *Synchronizer) CredentialsChanged() bool {
	return s.dispatch(func() {
		if !s.autoRefresh || s.ws != nil {
			return
		}
		s.supervisor.Reset()
		s.openPush()
	})
}

func (s *Synchronizer) start() {
	if s.autoRefresh {
		return
	}
	s.autoRefresh = true
	s.gen++
	s.cadence.Reset()
	s.session = uuid.NewString()
	s.logger.Info("synchronizer started",
		"session", s.session,
		"interval", s.interval.String(),
		"initial_full_delay_ms", s.initialFullDelay.Milliseconds())

	s.fetch(true)
	s.fullTimer = s.sched.AfterFunc(s.initialFullDelay, s.onTimer(s.gen, func() {
		s.fullTimer = nil
		s.fetch(false)
	}))
	s.openPush()
	s.armPoll()
}

func (s *Synchronizer) teardown() {
	if !s.autoRefresh {
		return
	}
	s.autoRefresh = false
	s.gen++

	stopTimer(&s.pollTimer)
	stopTimer(&s.fullTimer)
	s.supervisor.Reset()
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if s.ws != nil {
		s.ws.Close()
		s.ws = nil
	}
	s.inflight = 0
	s.store.SetLoading(false)
	s.store.SetPushConnected(false)
	s.metrics.RecordPushConnected(context.Background(), false)
	s.logger.Info("synchronizer stopped", "session", s.session)
}

func stopTimer(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// onTimer wraps fn so it runs on the loop only while gen is current.
func (s *Synchronizer) onTimer(gen uint64, fn func()) func() {
	return func() {
		s.dispatch(func() {
			if s.gen != gen || !s.autoRefresh {
				return
			}
			fn()
		})
	}
}

func (s *Synchronizer) armPoll() {
	s.pollTimer = s.sched.AfterFunc(s.interval, s.onTimer(s.gen, func() {
		tick, light := s.cadence.Next()
		s.logger.Debug("poll tick", "tick", tick, "light", light)
		s.fetch(light)
		s.armPoll()
	}))
}

func (s *Synchronizer) fetch(light bool) {
	gen := s.gen
	ctx := s.ctx
	s.inflight++
	s.store.SetLoading(true)

	s.spawn(func() {
		snap, err := s.fetcher.Fetch(ctx, light)
		s.dispatch(func() {
			if s.gen != gen {
				return
			}
			s.finishFetch(light, snap, err)
		})
	})
}

func (s *Synchronizer) finishFetch(light bool, snap status.Snapshot, err error) {
	if s.inflight > 0 {
		s.inflight--
	}
	if s.inflight == 0 {
		s.store.SetLoading(false)
	}
	s.metrics.RecordFetch(s.ctx, light, err == nil)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Warn("status fetch failed", "light", light, "error", err)
		if dashboard.IsAuth(err) {
			s.creds.ClearSession()
		}
		s.store.RecordError(dashboard.Message(err, fetchErrorFallback))
		return
	}

	origin := status.OriginPollFull
	if light {
		origin = status.OriginPollLight
	}
	s.store.Apply(status.Update{Origin: origin, Fields: snap}, s.sched.Now())
	s.store.RecordSuccess()
	s.logger.Debug("status applied", "origin", origin.String(), "fields", len(snap))

	if !light && s.persist != nil {
		view := s.store.View()
		persist := s.persist
		s.spawn(func() { persist(view.Status) })
	}
}
