// Package engine drives the conversation loop: it starts streaming
// turns, feeds received chunks through the decoder and dispatcher,
// executes requested tool batches in order, and chains follow-up turns
// until the backend answers without requesting tools.
//
// # Tick model
//
// The engine is cooperative. The host calls Tick repeatedly (once per
// scheduler pass); each Tick advances the in-flight turn by at most
// one transport step and never blocks. Tool handlers run inline during
// the Tick that delivers their batch, so a slow handler stalls the
// loop — handlers are expected to be local, fast operations.
//
// # Chaining
//
// After a tool batch completes, the next turn is queued and started
// once the current one reaches its terminal state, as a loop rather
// than nested calls. MaxChainedTurns bounds how many tool-assisted
// turns one user message may trigger; zero means unbounded.
package engine
