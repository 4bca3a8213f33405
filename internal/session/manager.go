package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/YingxuanHu/pixelholo-frontend/internal/observe"
	"github.com/YingxuanHu/pixelholo-frontend/pkg/audio"
	"github.com/YingxuanHu/pixelholo-frontend/pkg/audio/schedule"
	"github.com/YingxuanHu/pixelholo-frontend/pkg/streamio"
	"github.com/YingxuanHu/pixelholo-frontend/pkg/voiceclone"
)

// Config tunes the playback pipeline owned by a [Manager].
type Config struct {
	// SampleRate is the playback mix rate in Hz. Chunks are resampled to
	// this rate during decode.
	SampleRate int

	// SafetyMargin, Fade, and Overlap feed the scheduler; zero values
	// select the scheduler defaults.
	SafetyMargin time.Duration
	Fade         time.Duration
	Overlap      time.Duration

	// Transport selects the stream carrier. Default TransportHTTP.
	Transport Transport
}

// Option configures a [Manager] during construction.
type Option func(*Manager)

// WithEvents sets the observer receiving session notifications.
// Defaults to [NopEvents].
func WithEvents(ev Events) Option {
	return func(m *Manager) {
		if ev != nil {
			m.events = ev
		}
	}
}

// WithMetrics sets the OTel instrument set used by sessions. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(obs *observe.Metrics) Option {
	return func(m *Manager) {
		if obs != nil {
			m.obs = obs
		}
	}
}

// WithOutput sets the callback receiving rendered playback frames. A nil
// output leaves the playback engine render-only.
func WithOutput(output func([]int16)) Option {
	return func(m *Manager) {
		m.output = output
	}
}

// Manager owns the playback engine (clock, scheduler, player) and runs
// sessions against it. At most one session may be streaming at a time:
// starting a new session first cancels and waits out any prior one, so two
// sessions can never schedule onto the same clock concurrently.
//
// All exported methods are safe for concurrent use.
type Manager struct {
	client *voiceclone.Client
	cfg    Config
	events Events
	obs    *observe.Metrics
	output func([]int16)

	mu     sync.Mutex
	clock  schedule.Clock
	sched  *schedule.Scheduler
	player *schedule.Player
	active *Session
}

// NewManager creates a Manager running sessions against client. The playback
// engine is created lazily on the first Start and discarded by Stop.
func NewManager(client *voiceclone.Client, cfg Config, opts ...Option) *Manager {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	m := &Manager{
		client: client,
		cfg:    cfg,
		events: NopEvents{},
	}
	for _, o := range opts {
		o(m)
	}
	if m.obs == nil {
		m.obs = observe.DefaultMetrics()
	}
	return m
}

// Start begins a new synthesis session. It validates the request, cancels
// any session still streaming, ensures the playback engine exists and is
// resumed, rewinds the schedule cursor to the current clock value, opens the
// network stream, and launches the pump.
//
// The returned session is already streaming; use [Session.Wait] to block
// until it terminates.
func (m *Manager) Start(ctx context.Context, req Request) (*Session, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	// A prior streaming session must fully release the clock first. The
	// check and the engine acquisition share one critical section, so
	// concurrent Starts serialize onto a single session instead of both
	// observing an idle manager and pumping against the same scheduler.
	m.mu.Lock()
	for m.active != nil && !m.active.Status().Terminal() {
		prior := m.active
		m.mu.Unlock()
		prior.Cancel()
		prior.Wait()
		m.mu.Lock()
	}
	defer m.mu.Unlock()

	if err := m.ensureEngineLocked(); err != nil {
		return nil, err
	}
	m.sched.Reset()

	decoder, err := audio.NewDecoder(m.cfg.SampleRate)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	source, err := m.openStream(streamCtx, req)
	if err != nil {
		cancel()
		m.obs.RecordTransportError(ctx, "/stream")
		return nil, err
	}

	id := uuid.NewString()
	streamCtx, span := observe.StartSpan(streamCtx, "synthesis.stream")

	s := &Session{
		id:      id,
		speaker: req.Speaker,
		events:  m.events,
		obs:     m.obs,
		decoder: decoder,
		sched:   m.sched,
		player:  m.player,
		source:  source,
		cancel:  cancel,
		span:    span,
		ctx:     streamCtx,
		status:  StatusStreaming,
		stats: Metrics{
			ID:        id,
			StartedAt: time.Now(),
		},
		done: make(chan struct{}),
	}
	m.active = s
	m.obs.ActiveSessions.Add(ctx, 1)

	slog.Info("session started",
		"session_id", id,
		"speaker", req.Speaker,
		"text_len", len(req.Text),
		"transport", int(m.cfg.Transport),
	)

	go s.pump()
	return s, nil
}

// Cancel aborts the active session, if any. Calling Cancel with no active
// session is a no-op.
func (m *Manager) Cancel() {
	if s := m.Active(); s != nil {
		s.Cancel()
	}
}

// Stop cancels any in-flight session, waits for it to wind down, then closes
// and discards the playback engine and rewinds the schedule cursor to zero.
// A Start after Stop begins from a clean clock.
func (m *Manager) Stop() {
	m.mu.Lock()
	for m.active != nil {
		s := m.active
		m.mu.Unlock()
		s.Cancel()
		s.Wait()
		m.mu.Lock()
		if m.active == s {
			m.active = nil
		}
	}
	defer m.mu.Unlock()
	if m.player != nil {
		if err := m.player.Close(); err != nil {
			slog.Warn("player close error", "err", err)
		}
		m.player = nil
	}
	if m.sched != nil {
		m.sched.ResetTo(0)
	}
	m.clock = nil
	m.sched = nil
	m.active = nil
}

// Active returns the most recently started session, or nil.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// ensureEngineLocked creates the clock, scheduler, and player on first use
// and resumes a suspended player. Must be called with m.mu held.
func (m *Manager) ensureEngineLocked() error {
	if m.player == nil {
		clock := schedule.NewMonotonicClock()
		var schedOpts []schedule.Option
		if m.cfg.SafetyMargin > 0 {
			schedOpts = append(schedOpts, schedule.WithSafetyMargin(m.cfg.SafetyMargin.Seconds()))
		}
		if m.cfg.Fade > 0 {
			fade := m.cfg.Fade.Seconds()
			schedOpts = append(schedOpts, schedule.WithEnvelope(fade, fade))
		}
		if m.cfg.Overlap > 0 {
			schedOpts = append(schedOpts, schedule.WithOverlap(m.cfg.Overlap.Seconds()))
		}

		player, err := schedule.NewPlayer(clock, m.cfg.SampleRate, m.output)
		if err != nil {
			return fmt.Errorf("session: create player: %w", err)
		}
		m.clock = clock
		m.sched = schedule.New(clock, schedOpts...)
		m.player = player
	}
	return m.player.Resume()
}

// openStream opens the synthesis stream over the configured transport.
func (m *Manager) openStream(ctx context.Context, req Request) (streamio.LineSource, error) {
	vreq := voiceclone.StreamRequest{
		Speaker:    req.Speaker,
		Text:       req.Text,
		ModelPath:  req.ModelPath,
		RefWavPath: req.RefWavPath,
	}
	if m.cfg.Transport == TransportWebSocket {
		return m.client.StreamWS(ctx, vreq)
	}
	body, err := m.client.Stream(ctx, vreq)
	if err != nil {
		return nil, err
	}
	return streamio.NewLineReader(body), nil
}
