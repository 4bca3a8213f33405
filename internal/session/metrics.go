package session

import "time"

// ChunkReceipt records one audio chunk accepted by the scheduler.
type ChunkReceipt struct {
	// Index is the chunk's position in the stream.
	Index uint

	// Duration is the decoded clip length in seconds.
	Duration float64

	// StartAt is the playback start time assigned by the scheduler, in
	// the playback clock domain.
	StartAt float64

	// ReceivedAt is the wall-clock time the chunk was scheduled.
	ReceivedAt time.Time
}

// Metrics captures the latency profile of one session. It is created at
// session start and finalised when the session reaches a terminal status;
// read it via [Session.Stats] after [Session.Wait] returns.
type Metrics struct {
	// ID is the unique session identifier.
	ID string

	// StartedAt is the wall-clock time the request was issued.
	StartedAt time.Time

	// TimeToFirstAudio is the elapsed time from request start to the
	// first scheduled chunk. Valid only when HasFirstAudio is true.
	TimeToFirstAudio time.Duration
	HasFirstAudio    bool

	// TotalMs is the end-to-end synthesis time in milliseconds. The
	// server-reported inference time is preferred; when the stream ends
	// without one, the measured wall-clock elapsed time is used and
	// ServerReported is false.
	TotalMs        uint64
	ServerReported bool

	// Chunks lists every scheduled chunk in arrival order.
	Chunks []ChunkReceipt
}
