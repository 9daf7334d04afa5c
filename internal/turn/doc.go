// Package turn owns one request/stream cycle against the backend.
//
// # Overview
//
// A turn is a single chunked POST: the conversation snapshot goes up,
// an NDJSON event stream comes back. The Lifecycle is a small state
// machine
//
//	IDLE -> CONNECTING -> REQUESTING -> BODY_STREAMING -> DONE
//
// advanced exclusively by repeated Poll calls from the host's tick
// loop. Poll never blocks: the transport runs on a background reader
// goroutine that feeds a bounded event channel, and each Poll drains
// at most one event from it. After DONE the same Lifecycle can be
// started again; starting while a turn is active is rejected.
//
// # Errors
//
// Transport failures — unparseable endpoint, refused connection,
// non-success status, mid-body drop — are turn-fatal and surface as a
// *ConnectionError on the terminal Poll result. Everything inside the
// body is someone else's problem: bytes are handed to the caller as-is.
package turn
