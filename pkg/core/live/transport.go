package live

import "context"

// Handshake carries the persona-bound parameters sent once at session open.
// The transport requests audio-only responses with input transcription
// enabled; no tool configuration travels on this channel.
type Handshake struct {
	Model             string
	Voice             string
	SystemInstruction string
}

// ServerMessage is one inbound message from the live transport, already
// decoded from the wire. A message may carry a transcription, audio, both,
// or neither (pure control frames decode to the zero value).
type ServerMessage struct {
	// Transcript is the input transcription text. Valid when HasTranscript.
	Transcript    string
	HasTranscript bool

	// Audio is a playback chunk: s16le, 24 kHz, mono. Nil when absent.
	Audio []byte

	// TurnComplete marks the end of a model turn.
	TurnComplete bool
}

// Conn is an established bidirectional session.
type Conn interface {
	// SendAudio sends one capture frame: s16le, 16 kHz, mono.
	SendAudio(pcm []byte) error

	// Messages yields inbound messages in arrival order. The channel is
	// closed when the transport closes, cleanly or not.
	Messages() <-chan ServerMessage

	// Err returns the terminal transport error, if any, once Messages has
	// closed. A clean close returns nil.
	Err() error

	// Close shuts the transport down. Safe to call more than once.
	Close() error
}

// Transport opens live sessions. Connect blocks until the remote endpoint
// acknowledges the handshake.
type Transport interface {
	Connect(ctx context.Context, h Handshake) (Conn, error)
}
