package streamio

import "encoding/json"

// Kind discriminates the record variants carried by a synthesis stream.
type Kind int

const (
	// KindLog is a free-text progress or diagnostic line.
	KindLog Kind = iota

	// KindAudioChunk is a structured record carrying one base64-encoded
	// audio segment.
	KindAudioChunk

	// KindDone is the terminal record of a stream, optionally carrying the
	// server-measured inference time.
	KindDone
)

// String returns the lowercase name of the kind, for logs.
func (k Kind) String() string {
	switch k {
	case KindAudioChunk:
		return "audio_chunk"
	case KindDone:
		return "done"
	default:
		return "log"
	}
}

// Record is one decoded line of a synthesis stream. Exactly one variant
// applies per record, selected by Kind; fields of the other variants are zero.
type Record struct {
	Kind Kind

	// Text is the raw line. Always set for KindLog; retained verbatim for
	// the other kinds so callers can echo the wire form.
	Text string

	// ChunkIndex is the zero-based sequence number of an audio chunk.
	ChunkIndex uint

	// AudioBase64 is the base64-encoded audio payload of an audio chunk.
	AudioBase64 string

	// Format names the payload encoding of an audio chunk. Empty means
	// WAV; "opus" selects Opus frame decoding.
	Format string

	// InferenceMs is the server-reported total inference time for KindDone.
	// Valid only when HasInferenceMs is true.
	InferenceMs    uint
	HasInferenceMs bool
}

// wireRecord mirrors the JSON shape of structured stream lines.
type wireRecord struct {
	ChunkIndex  *uint  `json:"chunk_index"`
	AudioBase64 string `json:"audio_base64"`
	Format      string `json:"format"`
	Event       string `json:"event"`
	InferenceMs *uint  `json:"inference_ms"`
}

// Parse maps one line to exactly one Record. A line that is not a JSON object,
// or that is an object without a recognised discriminator, degrades to
// KindLog — malformed or plain-text progress lines never abort a stream.
func Parse(line string) Record {
	var w wireRecord
	if err := json.Unmarshal([]byte(line), &w); err != nil {
		return Record{Kind: KindLog, Text: line}
	}

	switch {
	case w.Event == "done":
		rec := Record{Kind: KindDone, Text: line}
		if w.InferenceMs != nil {
			rec.InferenceMs = *w.InferenceMs
			rec.HasInferenceMs = true
		}
		return rec

	case w.AudioBase64 != "":
		rec := Record{
			Kind:        KindAudioChunk,
			Text:        line,
			AudioBase64: w.AudioBase64,
			Format:      w.Format,
		}
		if w.ChunkIndex != nil {
			rec.ChunkIndex = *w.ChunkIndex
		}
		return rec

	default:
		// Structured but unrecognised — treat as progress text.
		return Record{Kind: KindLog, Text: line}
	}
}
