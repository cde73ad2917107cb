package live

import (
	"log/slog"
	"sync"

	"github.com/amigolabs/amigo/pkg/core/audio"
)

// CaptureDevice is a microphone that pushes float sample buffers of
// arbitrary size into the callback from a device-owned goroutine. Start
// fails with a permission error when the OS denies microphone access.
type CaptureDevice interface {
	Start(onSamples func(samples []float32)) error
	Stop() error
}

// FrameSink receives fixed-size s16le frames ready for the wire.
type FrameSink func(frame []byte)

// Capture re-blocks device callbacks of arbitrary length into fixed-size
// s16le frames and hands them to a sink. When no sink is attached incoming
// samples are dropped, not buffered: stale audio from before a session
// started must never reach the wire.
type Capture struct {
	dev          CaptureDevice
	frameSamples int
	pool         *audio.FramePool
	logger       *slog.Logger

	mu      sync.Mutex
	sink    FrameSink
	pending []float32

	started  bool
	stopOnce sync.Once
	stopErr  error
}

// NewCapture wraps a device with frame re-blocking at frameSamples per frame.
func NewCapture(dev CaptureDevice, frameSamples int, logger *slog.Logger) *Capture {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capture{
		dev:          dev,
		frameSamples: frameSamples,
		pool:         audio.NewFramePool(frameSamples * 2),
		logger:       logger,
		pending:      make([]float32, 0, frameSamples),
	}
}

// Start opens the device. The device callback runs on the device's own
// goroutine; re-blocking happens inline there.
func (c *Capture) Start() error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	if err := c.dev.Start(c.onSamples); err != nil {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		return err
	}
	return nil
}

// SetSink attaches or detaches (nil) the frame consumer. Detaching clears
// any partially accumulated frame so a later sink starts from silence.
func (c *Capture) SetSink(sink FrameSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
	if sink == nil {
		c.pending = c.pending[:0]
	}
}

// Stop closes the device. Safe to call more than once.
func (c *Capture) Stop() error {
	c.stopOnce.Do(func() {
		c.SetSink(nil)
		c.stopErr = c.dev.Stop()
	})
	return c.stopErr
}

// ReleaseFrame returns a frame previously handed to a sink to the pool.
func (c *Capture) ReleaseFrame(frame []byte) {
	c.pool.Put(frame)
}

func (c *Capture) onSamples(samples []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sink == nil {
		return
	}

	c.pending = append(c.pending, samples...)
	for len(c.pending) >= c.frameSamples {
		frame := c.pool.Get()
		audio.FloatToPCM16Into(c.pending[:c.frameSamples], frame)
		c.sink(frame)
		n := copy(c.pending, c.pending[c.frameSamples:])
		c.pending = c.pending[:n]
	}
}
