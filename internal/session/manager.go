// Package session manages the lifecycle of a voice session: microphone
// acquisition, the upstream provider connection, tool-call routing, and
// playback scheduling, tied together with a teardown path that releases
// every resource exactly once.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/discover-Austin/DorkNexus/internal/dispatch"
	"github.com/discover-Austin/DorkNexus/internal/observe"
	"github.com/discover-Austin/DorkNexus/internal/playback"
	"github.com/discover-Austin/DorkNexus/pkg/audio/capture"
	"github.com/discover-Austin/DorkNexus/pkg/provider/live"
)

// State describes the session lifecycle phase.
type State string

// Session states, in typical order of occurrence.
const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateListening    State = "listening"
	StateSpeaking     State = "speaking"
)

// ErrAlreadyActive is returned by Start when a session is running.
var ErrAlreadyActive = errors.New("session: a session is already active")

// ManagerConfig holds all dependencies for a [Manager].
type ManagerConfig struct {
	// Provider is the live backend sessions connect through.
	Provider live.Provider

	// ProviderName labels metrics and logs ("gemini-live", "openai-realtime").
	ProviderName string

	// Dispatcher routes tool calls. Required.
	Dispatcher *dispatch.Dispatcher

	// Instructions is the system prompt sent at session setup.
	Instructions string

	// Voice selects the assistant voice.
	Voice string

	// Metrics overrides the default metrics instance. Optional.
	Metrics *observe.Metrics
}

// Manager runs voice sessions. Only one session can be active at a time
// (enforced by mutex). All exported methods are safe for concurrent use.
type Manager struct {
	provider     live.Provider
	providerName string
	dispatcher   *dispatch.Dispatcher
	instructions string
	voice        string
	metrics      *observe.Metrics

	mu        sync.Mutex
	starting  bool
	active    bool
	state     State
	startedAt time.Time
	session   live.SessionHandle
	scheduler *playback.Scheduler

	// closers are called in reverse order during Stop.
	closers []func() error

	onState func(State)
	onLevel func(float64)
	onAudio func(playback.Item)
}

// NewManager creates a Manager with the given dependencies.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		provider:     cfg.Provider,
		providerName: cfg.ProviderName,
		dispatcher:   cfg.Dispatcher,
		instructions: cfg.Instructions,
		voice:        cfg.Voice,
		metrics:      cfg.Metrics,
		state:        StateDisconnected,
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// OnState registers the callback invoked on every state transition.
// Only one callback may be active at a time.
func (m *Manager) OnState(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onState = fn
}

// OnLevel registers the callback that receives the RMS level (0-100) of
// each captured microphone window.
func (m *Manager) OnLevel(fn func(float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLevel = fn
}

// OnAudio registers the callback that receives each scheduled playback
// chunk with its timeline position.
func (m *Manager) OnAudio(fn func(playback.Item)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAudio = fn
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsActive reports whether a session is currently running.
func (m *Manager) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Start begins a new voice session: it acquires the microphone source,
// connects to the provider, wires capture into the upstream session and
// model audio into the playback scheduler, and transitions to listening.
//
// Returns [ErrAlreadyActive] if a session is running or mid-setup. A
// source acquisition failure leaves the manager disconnected without
// touching the provider.
//
// The manager publishes active only after every resource is wired, so
// Stop and Interrupt treat a session that is still connecting as
// inactive rather than racing its setup.
func (m *Manager) Start(ctx context.Context, source capture.Source) error {
	m.mu.Lock()
	if m.active || m.starting {
		m.mu.Unlock()
		return ErrAlreadyActive
	}
	m.starting = true // reserve the single session slot
	m.mu.Unlock()

	m.setState(StateConnecting)

	frames, err := source.Open(ctx)
	if err != nil {
		m.reset()
		return fmt.Errorf("session: open source: %w", err)
	}

	sess, err := m.provider.Connect(ctx, live.SessionConfig{
		Instructions: m.instructions,
		Voice:        m.voice,
		Tools:        dispatch.Definitions(),
	})
	if err != nil {
		_ = source.Close()
		m.reset()
		return fmt.Errorf("session: connect: %w", err)
	}

	sess.OnToolCall(m.dispatcher.Dispatch)

	sched := playback.New(m.emitAudio)
	sched.OnDrained(func() { m.setState(StateListening) })

	pipeline := capture.New(func(win []byte) error {
		if err := sess.SendAudio(win); err != nil {
			return err
		}
		m.metrics.RecordChunkSent(context.Background(), m.providerName)
		return nil
	}, capture.WithLevelFunc(m.emitLevel))
	pipeline.Start(frames)

	m.mu.Lock()
	m.starting = false
	m.active = true
	m.session = sess
	m.scheduler = sched
	m.startedAt = time.Now()
	// Run in reverse by Stop: the upstream session closes first so a
	// capture sink blocked mid-send unblocks before the pipeline
	// goroutine is waited out.
	m.closers = []func() error{
		sched.Close,
		source.Close,
		func() error { pipeline.Stop(); return nil },
		sess.Close,
	}
	m.mu.Unlock()

	m.metrics.ActiveSessions.Add(ctx, 1)
	m.setState(StateListening)

	go m.forward(sess, sched)

	slog.Info("session started", "provider", m.providerName, "voice", m.voice)
	return nil
}

// forward moves model audio from the provider session into the playback
// scheduler, preserving arrival order. It runs until the session's
// audio channel closes, then tears the session down.
func (m *Manager) forward(sess live.SessionHandle, sched *playback.Scheduler) {
	for chunk := range sess.Audio() {
		m.metrics.RecordChunkReceived(context.Background(), m.providerName)
		enqueuedAt := time.Now()
		if err := sched.Enqueue(chunk); err != nil {
			// Dropped frame: nothing entered the live-set, so the state
			// must not flip to speaking.
			m.metrics.DecodeErrors.Add(context.Background(), 1)
			slog.Warn("session: dropping undecodable audio chunk", "err", err)
			continue
		}
		m.metrics.EnqueueLatency.Record(context.Background(), time.Since(enqueuedAt).Seconds())
		m.setState(StateSpeaking)
	}

	if err := sess.Err(); err != nil {
		slog.Error("session ended abnormally", "provider", m.providerName, "err", err)
	}
	m.Stop()
}

// Stop gracefully ends the active session: pending playback is flushed,
// then the provider connection, capture pipeline, source and scheduler
// are released. Stopping an inactive manager is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	closers := m.closers
	scheduler := m.scheduler
	startedAt := m.startedAt
	m.active = false
	m.session = nil
	m.scheduler = nil
	m.closers = nil
	m.mu.Unlock()

	// Flush pending playback before the closers run so nothing fires the
	// drained callback mid-teardown.
	if scheduler != nil {
		scheduler.CancelAll()
	}

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			slog.Warn("session: closer error", "index", i, "err", err)
		}
	}

	m.metrics.ActiveSessions.Add(context.Background(), -1)
	m.metrics.SessionDuration.Record(context.Background(), time.Since(startedAt).Seconds())
	m.setState(StateDisconnected)

	slog.Info("session stopped", "provider", m.providerName, "duration", time.Since(startedAt))
}

// Interrupt cuts the assistant off mid-utterance: pending playback is
// flushed immediately and the provider is asked to cancel its current
// response where the protocol supports it. The session returns to
// listening.
func (m *Manager) Interrupt() error {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return fmt.Errorf("session: no active session to interrupt")
	}
	sess := m.session
	sched := m.scheduler
	m.mu.Unlock()

	sched.CancelAll()
	if err := sess.Interrupt(); err != nil {
		// Providers without a cancel primitive still get local flush.
		slog.Debug("session: provider interrupt unavailable", "err", err)
	}
	m.setState(StateListening)
	return nil
}

// reset abandons a half-started session after a setup failure.
func (m *Manager) reset() {
	m.mu.Lock()
	m.starting = false
	m.active = false
	m.mu.Unlock()
	m.setState(StateDisconnected)
}

// setState records a transition and notifies the registered callback.
// Repeated transitions to the current state are suppressed.
func (m *Manager) setState(s State) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	cb := m.onState
	m.mu.Unlock()

	if cb != nil {
		cb(s)
	}
}

func (m *Manager) emitLevel(level float64) {
	m.mu.Lock()
	cb := m.onLevel
	m.mu.Unlock()
	if cb != nil {
		cb(level)
	}
}

func (m *Manager) emitAudio(it playback.Item) {
	m.mu.Lock()
	cb := m.onAudio
	m.mu.Unlock()
	if cb != nil {
		cb(it)
	}
}
