// Package live implements the real-time voice session pipeline: microphone
// capture, playback scheduling, and the lifecycle of the bidirectional
// streaming session with the remote persona.
//
// The session manager is an explicit state machine (Idle, Connecting, Active,
// Closing) driven by three unordered callback sources: the capture device's
// frame callback, the transport read loop, and user-initiated start/stop/
// switch requests. Lifecycle transitions are serialized so at most one
// transport and one pair of audio devices exist at any instant.
//
// A persona hand-off ("quiero hablar con nicole" / "quiero hablar con laura"
// in the input transcription) is a full session replacement: the remote
// endpoint binds voice and system instruction at connection time, so the
// manager tears the session down completely and reconnects with the new
// persona's handshake.
package live
