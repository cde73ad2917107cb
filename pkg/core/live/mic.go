package live

import (
	"encoding/binary"
	"math"

	"github.com/gen2brain/malgo"

	"github.com/amigolabs/amigo/pkg/core"
	"github.com/amigolabs/amigo/pkg/core/audio"
)

// malgoMic captures microphone audio through miniaudio. The device callback
// delivers float32 sample buffers on miniaudio's own thread.
type malgoMic struct {
	cfg audio.Config
	ctx *malgo.AllocatedContext
	dev *malgo.Device
}

func newMalgoMic(cfg audio.Config) *malgoMic {
	return &malgoMic{cfg: cfg}
}

func (m *malgoMic) Start(onSamples func(samples []float32)) error {
	ctxCfg := malgo.ContextConfig{}
	ctxCfg.ThreadPriority = malgo.ThreadPriorityRealtime

	ctx, err := malgo.InitContext(nil, ctxCfg, nil)
	if err != nil {
		return core.NewPermissionError("failed to init audio context", err)
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.Capture.Format = malgo.FormatF32
	devCfg.Capture.Channels = uint32(m.cfg.Channels)
	devCfg.SampleRate = uint32(m.cfg.SampleRate)
	devCfg.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			onSamples(floatSamplesLE(input))
		},
	}

	dev, err := malgo.InitDevice(ctx.Context, devCfg, callbacks)
	if err != nil {
		ctx.Uninit()
		return core.NewPermissionError("microphone unavailable", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		ctx.Uninit()
		return core.NewPermissionError("microphone access denied", err)
	}

	m.ctx = ctx
	m.dev = dev
	return nil
}

func (m *malgoMic) Stop() error {
	if m.dev != nil {
		m.dev.Stop()
		m.dev.Uninit()
		m.dev = nil
	}
	if m.ctx != nil {
		m.ctx.Uninit()
		m.ctx = nil
	}
	return nil
}

// floatSamplesLE reinterprets a little-endian f32 byte buffer as samples.
func floatSamplesLE(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
