package audio

import "time"

// Config specifies audio format parameters.
type Config struct {
	// SampleRate in Hz. Capture runs at 16000, playback at 24000.
	SampleRate int `json:"sample_rate"`

	// Channels: 1 for mono, 2 for stereo.
	Channels int `json:"channels"`

	// BitsPerSample: 16 for PCM.
	BitsPerSample int `json:"bits_per_sample"`
}

// CaptureConfig is the microphone input format.
func CaptureConfig() Config {
	return Config{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
}

// PlaybackConfig is the speaker output format.
func PlaybackConfig() Config {
	return Config{SampleRate: 24000, Channels: 1, BitsPerSample: 16}
}

// BytesPerSecond returns the audio byte rate.
func (c Config) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}

// Duration returns the play time of the given byte count.
func (c Config) Duration(bytes int) time.Duration {
	bps := c.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(bytes) * time.Second / time.Duration(bps)
}

// BytesFor returns the byte count covering the given duration.
func (c Config) BytesFor(d time.Duration) int {
	return int(int64(c.BytesPerSecond()) * int64(d) / int64(time.Second))
}
