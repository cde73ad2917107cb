// Package audio implements PCM conversion and transport encoding for the
// live voice pipeline. Capture audio is 16 kHz mono s16le, playback audio is
// 24 kHz mono s16le; both cross the wire base64-encoded because the live
// transport carries only text-safe payloads.
package audio

import (
	"encoding/base64"
	"fmt"
	"math"

	"github.com/amigolabs/amigo/pkg/core"
)

// FloatToPCM16 converts float samples in [-1, 1] to 16-bit little-endian PCM.
// Samples outside the range are clamped. Negative values scale by 32768 and
// non-negative values by 32767 so both extremes map onto the int16 domain.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	FloatToPCM16Into(samples, out)
	return out
}

// FloatToPCM16Into is FloatToPCM16 writing into a caller-provided buffer,
// which must hold len(samples)*2 bytes. Used on the capture path to avoid
// allocating per frame.
func FloatToPCM16Into(samples []float32, out []byte) {
	for i, f := range samples {
		s := float64(f)
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
}

// PCM16ToFloat converts interleaved 16-bit little-endian PCM into per-channel
// float sequences, dividing by 32768. It returns a format error when the byte
// length is not a multiple of 2*channels.
func PCM16ToFloat(data []byte, channels int) ([][]float32, error) {
	if channels <= 0 {
		return nil, core.NewInvalidRequestError(fmt.Sprintf("channels must be positive, got %d", channels))
	}
	if len(data)%(2*channels) != 0 {
		return nil, core.NewFormatError(fmt.Sprintf("pcm length %d is not a multiple of %d", len(data), 2*channels))
	}

	frames := len(data) / (2 * channels)
	out := make([][]float32, channels)
	for ch := range out {
		out[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * 2
			sample := int16(data[off]) | int16(data[off+1])<<8
			out[ch][i] = float32(sample) / 32768.0
		}
	}
	return out, nil
}

// EncodeTransport encodes raw bytes into the text-safe transport form.
func EncodeTransport(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeTransport decodes the text-safe transport form back into raw bytes.
func DecodeTransport(text string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, core.NewFormatError("invalid transport encoding: " + err.Error())
	}
	return data, nil
}

// RMSEnergy computes the root-mean-square energy of s16le PCM audio.
// Returns a value between 0.0 and 1.0.
func RMSEnergy(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < len(pcm)-1; i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
	}

	return math.Sqrt(sum / float64(samples))
}
