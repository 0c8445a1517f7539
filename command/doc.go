// Package command manages the lifecycle and pooling of GPU command lists.
//
// A List records copy work through a device.Recorder and submits it to the
// device's single queue with ExecuteAsync. Completion is observed through
// the submission fence on a background goroutine, so ExecuteAsync returns
// as soon as the work is queued and WaitForCompletion blocks on a channel
// rather than polling.
//
// Pools pre-build a fixed number of lists per command type. An exhausted
// pool is a recoverable error (ErrPoolExhausted); Acquire waits for a list
// instead. A Manager groups one pool per command type and Scoped returns a
// checked-out list exactly once.
package command
