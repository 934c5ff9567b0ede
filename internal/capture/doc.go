// Package capture turns live per-participant voice subscriptions into finalized
// in-memory PCM buffers.
//
// A RecordingContext exists for each open voice connection and owns one Session per
// participant. A Session subscribes to the participant's audio through a Receiver,
// runs a single decode goroutine that appends decoded frames to its buffer, and moves
// through the states Capturing, Draining, then Finalized or Failed.
//
// Frames are only accepted while a session is Capturing, so frames decoded after
// Finalize has begun never reach the returned buffer.
package capture
