package live

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/amigolabs/amigo/pkg/core"
	"github.com/amigolabs/amigo/pkg/core/audio"
)

// Devices abstracts the host audio hardware so the manager can be driven by
// fakes in tests. NewCapture must surface OS permission denial as a
// permission error before any transport work happens.
type Devices struct {
	NewCapture  func() (CaptureDevice, error)
	NewPlayback func() (Clock, Sink, error)
}

// Manager owns the live conversation lifecycle: one persona, one transport
// connection, one capture pipeline and one playback scheduler at a time.
// Persona switches are full replacements, never overlapping: the old
// connection is fully closed before the new handshake starts.
type Manager struct {
	cfg       Config
	transport Transport
	devices   Devices
	interp    *CommandInterpreter
	logger    *slog.Logger

	events chan Event

	// lifecycle serializes Start, Stop and SwitchTo end to end so a switch
	// observes the stopped world before connecting the replacement.
	lifecycle sync.Mutex

	mu         sync.Mutex
	state      State
	persona    Persona
	generation uint64
	conn       Conn
	capture    *Capture
	sched      *Scheduler
}

// NewManager creates an idle manager. Events are delivered on Events() from
// the manager's own goroutines; slow consumers drop events rather than stall
// the audio path.
func NewManager(cfg Config, transport Transport, devices Devices, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:       cfg,
		transport: transport,
		devices:   devices,
		interp:    NewCommandInterpreter(),
		logger:    logger,
		events:    make(chan Event, 64),
		state:     StateIdle,
		persona:   PersonaLaura,
	}
}

// Events returns the stream of session events.
func (m *Manager) Events() <-chan Event { return m.events }

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Persona returns the currently selected persona.
func (m *Manager) Persona() Persona {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persona
}

// Start opens a session with the given persona. Microphone permission is
// acquired first: when the OS denies access no transport connection is ever
// opened. On any failure the manager returns to idle with all partial
// resources released.
func (m *Manager) Start(ctx context.Context, persona Persona) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return core.NewInvalidRequestError("session already active")
	}
	m.mu.Unlock()

	return m.startLocked(ctx, persona)
}

// Stop tears the session down and returns the manager to idle. Calling Stop
// on an idle manager is a no-op.
func (m *Manager) Stop() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if m.state == StateIdle {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	m.stopLocked("stopped")
	return nil
}

// SwitchTo replaces the current persona with another: full stop, then a
// fresh start. The replacement connection only begins its handshake after
// the old one is completely closed.
func (m *Manager) SwitchTo(ctx context.Context, persona Persona) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	from := m.persona
	active := m.state != StateIdle
	m.mu.Unlock()

	if active {
		m.stopLocked("persona switch")
	}
	if err := m.startLocked(ctx, persona); err != nil {
		return err
	}
	m.emit(&PersonaSwitchEvent{From: from.Name, To: persona.Name})
	return nil
}

// startLocked runs the connect sequence. Caller holds m.lifecycle.
func (m *Manager) startLocked(ctx context.Context, persona Persona) error {
	m.setState(StateConnecting, persona)

	dev, err := m.devices.NewCapture()
	if err != nil {
		m.forcedIdle()
		m.emit(&ErrorEvent{Code: string(core.TypeOf(err)), Message: err.Error()})
		return err
	}
	capture := NewCapture(dev, m.cfg.FrameSamples, m.logger)
	if err := capture.Start(); err != nil {
		capture.Stop()
		m.forcedIdle()
		m.emit(&ErrorEvent{Code: string(core.TypeOf(err)), Message: err.Error()})
		return err
	}

	clock, sink, err := m.devices.NewPlayback()
	if err != nil {
		capture.Stop()
		m.forcedIdle()
		m.emit(&ErrorEvent{Code: string(core.TypeOf(err)), Message: err.Error()})
		return err
	}
	sched := NewScheduler(m.cfg.Playback, clock, sink, m.logger)

	conn, err := m.transport.Connect(ctx, Handshake{
		Model:             m.cfg.Model,
		Voice:             persona.Voice,
		SystemInstruction: persona.SystemInstruction,
	})
	if err != nil {
		capture.Stop()
		sched.Close()
		m.forcedIdle()
		m.emit(&ErrorEvent{Code: string(core.TypeOf(err)), Message: err.Error()})
		return err
	}
	if ctx.Err() != nil {
		conn.Close()
		capture.Stop()
		sched.Close()
		m.forcedIdle()
		return ctx.Err()
	}

	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.conn = conn
	m.capture = capture
	m.sched = sched
	m.mu.Unlock()

	capture.SetSink(func(frame []byte) {
		m.emit(&MicLevelEvent{RMS: audio.RMSEnergy(frame)})
		if err := conn.SendAudio(frame); err != nil {
			m.logger.Debug("dropping mic frame", "error", err)
		}
		capture.ReleaseFrame(frame)
	})

	m.setState(StateActive, persona)
	go m.readLoop(gen, conn, sched)
	return nil
}

// stopLocked tears down the active session. Caller holds m.lifecycle.
func (m *Manager) stopLocked(reason string) {
	m.mu.Lock()
	from := m.state
	m.state = StateClosing
	m.generation++ // anything still in flight from the old conn is stale now
	conn, capture, sched := m.conn, m.capture, m.sched
	m.conn, m.capture, m.sched = nil, nil, nil
	persona := m.persona
	m.mu.Unlock()
	m.emit(&StateChangedEvent{From: from.String(), To: StateClosing.String(), Persona: persona.Name})

	if capture != nil {
		capture.Stop()
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			m.logger.Debug("transport close", "error", err)
		}
	}
	if sched != nil {
		sched.Close()
	}

	m.setState(StateIdle, persona)
	m.emit(&ClosedEvent{Reason: reason})
}

// readLoop drains one connection's server messages. It exits when the
// connection's message channel closes; if this generation is still current
// the session collapses back to idle with an error event.
func (m *Manager) readLoop(gen uint64, conn Conn, sched *Scheduler) {
	for msg := range conn.Messages() {
		if !m.current(gen) {
			return
		}
		if msg.HasTranscript {
			if target, ok := m.interp.Match(msg.Transcript); ok {
				// A failed switch surfaces as an ErrorEvent from startLocked.
				go m.SwitchTo(context.Background(), target)
				return
			}
			m.emit(&TranscriptEvent{Text: msg.Transcript})
		}
		if len(msg.Audio) > 0 {
			if err := sched.Schedule(msg.Audio); err != nil {
				m.logger.Warn("dropping playback chunk", "error", err)
			}
		}
	}

	if !m.current(gen) {
		return
	}

	err := conn.Err()
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	if !m.current(gen) {
		return
	}
	m.stopLocked("connection lost")
	if err != nil && !errors.Is(err, context.Canceled) {
		m.emit(&ErrorEvent{Code: string(core.TypeOf(err)), Message: err.Error()})
	}
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.generation
}

func (m *Manager) setState(to State, persona Persona) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.persona = persona
	m.mu.Unlock()
	if from != to {
		m.emit(&StateChangedEvent{From: from.String(), To: to.String(), Persona: persona.Name})
	}
}

// forcedIdle resets to idle without touching per-conn resources; used on
// connect failures where the caller releases what it acquired.
func (m *Manager) forcedIdle() {
	m.mu.Lock()
	from := m.state
	m.state = StateIdle
	persona := m.persona
	m.mu.Unlock()
	if from != StateIdle {
		m.emit(&StateChangedEvent{From: from.String(), To: StateIdle.String(), Persona: persona.Name})
	}
}

func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		m.logger.Debug("event dropped", "type", ev.EventType())
	}
}
