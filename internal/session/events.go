package session

// Events receives session progress notifications. Implementations are
// invoked synchronously from the session's pump goroutine and must not
// block for extended periods.
type Events interface {
	// Log receives one free-text progress line from the stream, plus
	// locally generated diagnostics such as dropped-chunk reports.
	Log(line string)

	// ChunkScheduled is called after a chunk has been placed on the
	// playback clock.
	ChunkScheduled(receipt ChunkReceipt)

	// Finished is called exactly once when the session reaches a terminal
	// status. err is non-nil only for StatusFailed; a cancelled session
	// finishes with a nil error.
	Finished(status Status, stats Metrics, err error)
}

// NopEvents is an Events implementation that discards all notifications.
type NopEvents struct{}

func (NopEvents) Log(string)                           {}
func (NopEvents) ChunkScheduled(ChunkReceipt)          {}
func (NopEvents) Finished(Status, Metrics, error)      {}

// Compile-time interface assertion.
var _ Events = NopEvents{}
