// Package audio decodes the base64 payloads delivered by the pixelholo
// synthesis stream into PCM clips ready for scheduling. WAV containers are
// autodetected; Opus frames are decoded when a record declares format "opus".
package audio

// Clip is one decoded audio chunk: mono 16-bit PCM at a known sample rate.
// A Clip is created and consumed within a single stream session and never
// shared across sessions.
type Clip struct {
	// Index is the chunk's zero-based position in the stream.
	Index uint

	// PCM holds the mono samples.
	PCM []int16

	// SampleRate in Hz.
	SampleRate int
}

// Duration returns the clip length in seconds. Zero when the clip holds no
// samples or has no valid rate.
func (c *Clip) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.PCM)) / float64(c.SampleRate)
}
