package live

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amigolabs/amigo/pkg/core"
	"github.com/amigolabs/amigo/pkg/core/audio"
)

// Clock reports the current position of the output device's timeline.
type Clock interface {
	Now() time.Duration
}

// Sink accepts PCM scheduled at an offset on the output timeline. Offsets
// are non-decreasing across calls; the sink never reorders.
type Sink interface {
	PlayAt(pcm []byte, at time.Duration) error
	Close() error
}

// Scheduler renders streamed audio chunks gaplessly despite irregular
// arrival timing. It keeps a single cursor marking the end of already
// scheduled audio; each chunk starts at max(cursor, clock now) so a cursor
// that fell behind real time (after a pause in the stream) never schedules
// audio in the past.
type Scheduler struct {
	cfg    audio.Config
	clock  Clock
	sink   Sink
	logger *slog.Logger

	mu     sync.Mutex
	cursor time.Duration
}

// NewScheduler creates a scheduler over the given output clock and sink.
func NewScheduler(cfg audio.Config, clock Clock, sink Sink, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{cfg: cfg, clock: clock, sink: sink, logger: logger}
	s.Reset()
	return s
}

// Schedule submits one chunk of s16le playback audio. Chunks are scheduled
// strictly in arrival order. A malformed chunk is rejected with a format
// error; the caller drops it and the stream continues.
func (s *Scheduler) Schedule(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	if len(chunk)%(2*s.cfg.Channels) != 0 {
		return core.NewFormatError(fmt.Sprintf("audio chunk length %d is not frame aligned", len(chunk)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	startAt := s.cursor
	if now := s.clock.Now(); now > startAt {
		startAt = now
	}
	if err := s.sink.PlayAt(chunk, startAt); err != nil {
		return err
	}
	s.cursor = startAt + s.cfg.Duration(len(chunk))
	return nil
}

// Reset moves the cursor to the output clock's current time. Called when a
// new session replaces the old one: the new stream has no temporal
// relationship to the old one's scheduled tail.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = s.clock.Now()
}

// Cursor returns the end of already-scheduled audio on the output timeline.
func (s *Scheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Close releases the sink.
func (s *Scheduler) Close() error {
	return s.sink.Close()
}
