package live

import (
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/amigolabs/amigo/pkg/core"
	"github.com/amigolabs/amigo/pkg/core/audio"
)

// The oto context is process-global and cannot be torn down, so it is
// created once and shared across sessions.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

func sharedOtoContext(cfg audio.Config) (*oto.Context, error) {
	otoOnce.Do(func() {
		opts := &oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: cfg.Channels,
			Format:       oto.FormatSignedInt16LE,
			// ~100ms buffer keeps latency low at the cost of glitch headroom.
			BufferSize: 100 * time.Millisecond,
		}
		ctx, ready, err := oto.NewContext(opts)
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoCtx = ctx
	})
	return otoCtx, otoErr
}

// wallClock tracks the output timeline from the moment a session's playback
// path was created.
type wallClock struct {
	start time.Time
}

func (c *wallClock) Now() time.Duration { return time.Since(c.start) }

// otoSpeaker renders scheduled PCM through the speaker. Offsets arrive
// non-decreasing from the scheduler; a gap between the end of the queued
// audio and the next offset is filled with silence so timing is preserved.
type otoSpeaker struct {
	cfg    audio.Config
	start  time.Time
	player *oto.Player

	mu      sync.Mutex
	buf     []byte
	queued  time.Duration
	playing bool
	closed  bool
}

func newOtoSpeaker(cfg audio.Config, start time.Time) (*otoSpeaker, error) {
	ctx, err := sharedOtoContext(cfg)
	if err != nil {
		return nil, core.NewTransportError("failed to init speaker", err)
	}
	s := &otoSpeaker{cfg: cfg, start: start}
	s.player = ctx.NewPlayer(s)
	return s, nil
}

func (s *otoSpeaker) PlayAt(pcm []byte, at time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.NewInvalidRequestError("speaker is closed")
	}

	// The render position is the end of the queued audio, or the wall clock
	// if the buffer underflowed and silence has been playing since.
	pos := s.queued
	if now := time.Since(s.start); now > pos {
		pos = now
	}
	if at > pos {
		pad := s.cfg.BytesFor(at - pos)
		pad -= pad % (2 * s.cfg.Channels)
		s.buf = append(s.buf, make([]byte, pad)...)
	}
	s.buf = append(s.buf, pcm...)
	s.queued = at + s.cfg.Duration(len(pcm))

	if !s.playing {
		s.playing = true
		s.player.Play()
	}
	return nil
}

// Read feeds the oto player. Underflow yields silence rather than blocking
// so the device keeps running between turns.
func (s *otoSpeaker) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buf) == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *otoSpeaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.buf = nil
	s.mu.Unlock()

	return s.player.Close()
}

// HardwareDevices returns the manager's device constructors backed by the
// host microphone and speaker.
func HardwareDevices(cfg Config) Devices {
	return Devices{
		NewCapture: func() (CaptureDevice, error) {
			return newMalgoMic(cfg.Capture), nil
		},
		NewPlayback: func() (Clock, Sink, error) {
			start := time.Now()
			sink, err := newOtoSpeaker(cfg.Playback, start)
			if err != nil {
				return nil, nil, err
			}
			return &wallClock{start: start}, sink, nil
		},
	}
}
