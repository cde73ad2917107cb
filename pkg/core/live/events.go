package live

// Event is the interface for all session manager events. The UI observes
// these instead of owning transport callbacks.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// StateChangedEvent is emitted on every state machine transition.
type StateChangedEvent struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Persona string `json:"persona"`
}

func (e *StateChangedEvent) EventType() string { return "state.changed" }

// TranscriptEvent carries the latest transcribed utterance. Utterances that
// matched a persona-switch phrase are never emitted as transcripts.
type TranscriptEvent struct {
	Text string `json:"text"`
}

func (e *TranscriptEvent) EventType() string { return "transcript" }

// PersonaSwitchEvent is emitted when a switch phrase is recognized in the
// input transcription, before the session replacement begins. Fields carry
// the persona display names.
type PersonaSwitchEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (e *PersonaSwitchEvent) EventType() string { return "persona.switch" }

// MicLevelEvent reports capture energy, one reading per frame.
type MicLevelEvent struct {
	RMS float64 `json:"rms"`
}

func (e *MicLevelEvent) EventType() string { return "mic.level" }

// ErrorEvent is emitted when a session-lifecycle error forces the manager
// to idle. Codec and scheduler errors are contained locally and only logged.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorEvent) EventType() string { return "error" }

// ClosedEvent is emitted once when the manager shuts down for good.
type ClosedEvent struct {
	Reason string `json:"reason,omitempty"`
}

func (e *ClosedEvent) EventType() string { return "closed" }
