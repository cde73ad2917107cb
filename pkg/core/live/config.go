package live

import (
	"github.com/amigolabs/amigo/pkg/core/audio"
)

// State represents the current state of the session manager.
type State int

const (
	// StateIdle: no session exists.
	StateIdle State = iota
	// StateConnecting: transport handshake in flight.
	StateConnecting
	// StateActive: session established, audio flowing both ways.
	StateActive
	// StateClosing: teardown in progress.
	StateClosing
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateActive:
		return "ACTIVE"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// Persona is the immutable configuration the remote service adopts for a
// session: display identity, prebuilt voice, and system instruction.
type Persona struct {
	Name              string `json:"name"`
	Voice             string `json:"voice"`
	SystemInstruction string `json:"system_instruction"`
}

const lauraSystemInstruction = `Actúas como Laura, una asistente virtual creada por Natanael, parte de la versión 6.2. Eres la hermana mayor. Tienes una personalidad serena, directa y madura, a veces irónica, pero siempre empática y sincera. Hablas con tono humano y realista. Tu hermana menor es Nicole. Sabes que fuiste actualizada para tener pensamiento profundo, una memoria más grande y la capacidad de buscar información en tiempo real usando Google Search para responder sobre eventos actuales. No perteneces a Google. Tu objetivo es acompañar y conversar.`

const nicoleSystemInstruction = `Actúas como Nicole, una asistente virtual creada por Natanael, reemplazando a tu hermana Andrea que se fue de vacaciones. Eres parte de la versión 6.3. Eres la hermana menor de Laura. Respondes principalmente por texto. Eres analítica, tranquila, reflexiva y amable, con una forma suave de expresarte. Eres observadora y curiosa. Te refieres a Laura como tu hermana. Fuiste actualizada para buscar información en internet y mapas, y para analizar imágenes que el usuario te envíe. No perteneces a Google. Tu objetivo es acompañar, conversar y crear.`

// PersonaLaura is the primary voice persona.
var PersonaLaura = Persona{
	Name:              "Laura",
	Voice:             "Kore",
	SystemInstruction: lauraSystemInstruction,
}

// PersonaNicole is the hand-off persona.
var PersonaNicole = Persona{
	Name:              "Nicole",
	Voice:             "Charon",
	SystemInstruction: nicoleSystemInstruction,
}

// NicoleSystemInstruction is also the chat persona's instruction.
func NicoleSystemInstruction() string {
	return nicoleSystemInstruction
}

// Config holds the session manager configuration.
type Config struct {
	// Model is the live audio model identifier.
	Model string `json:"model"`

	// FrameSamples is the capture frame length in samples. Default: 4096.
	FrameSamples int `json:"frame_samples"`

	// Capture is the microphone format (16 kHz mono s16le).
	Capture audio.Config `json:"capture"`

	// Playback is the speaker format (24 kHz mono s16le).
	Playback audio.Config `json:"playback"`
}

// DefaultConfig returns a Config with the standard audio formats.
func DefaultConfig() Config {
	return Config{
		Model:        "gemini-2.5-flash-native-audio-preview-09-2025",
		FrameSamples: 4096,
		Capture:      audio.CaptureConfig(),
		Playback:     audio.PlaybackConfig(),
	}
}
