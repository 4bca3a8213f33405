package session

// Status is the lifecycle state of a synthesis session.
type Status int

const (
	// StatusIdle means the session has been created but not started.
	StatusIdle Status = iota

	// StatusStreaming means the network stream is open and records are
	// being pumped.
	StatusStreaming

	// StatusCompleted means the stream finished normally (a done record
	// arrived or the stream ended cleanly).
	StatusCompleted

	// StatusCancelled means the caller aborted the session. Cancellation
	// is not a failure and is never reported as one.
	StatusCancelled

	// StatusFailed means a transport or ordering error terminated the
	// stream.
	StatusFailed
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusStreaming:
		return "streaming"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session has finished (successfully or not).
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}
