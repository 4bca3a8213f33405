package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"layeh.com/gopus"
)

// FormatOpus selects the Opus frame decode path. Any other (or empty) format
// value is treated as a WAV container.
const FormatOpus = "opus"

// opusMaxFrameSamples is the largest Opus frame (120 ms at 48 kHz).
const opusMaxFrameSamples = 5760

// Decoder turns base64 audio payloads into mono PCM clips, resampling to a
// fixed output rate so every clip scheduled within a session shares one clock
// domain. A Decoder belongs to a single session; it is not safe for
// concurrent use because the Opus decoder carries codec state across frames.
type Decoder struct {
	outputRate int
	opus       *gopus.Decoder // lazily created on the first opus payload
	opusRate   int
}

// NewDecoder creates a Decoder that emits clips at outputRate Hz.
func NewDecoder(outputRate int) (*Decoder, error) {
	if outputRate <= 0 {
		return nil, fmt.Errorf("audio: invalid output rate %d", outputRate)
	}
	return &Decoder{outputRate: outputRate}, nil
}

// OutputRate returns the sample rate of the clips this decoder produces.
func (d *Decoder) OutputRate() int { return d.outputRate }

// Decode converts one base64 payload into a Clip with the given index.
// format selects the codec ("" or anything but "opus" means WAV).
func (d *Decoder) Decode(index uint, payloadBase64, format string) (*Clip, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payloadBase64))
	if err != nil {
		return nil, fmt.Errorf("audio: chunk %d base64: %w", index, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("audio: chunk %d payload is empty", index)
	}

	var pcm []int16
	var rate int
	if format == FormatOpus {
		pcm, rate, err = d.decodeOpus(raw)
	} else {
		pcm, rate, err = decodeWAV(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("audio: chunk %d: %w", index, err)
	}

	if rate != d.outputRate {
		pcm = Resample(pcm, rate, d.outputRate)
	}
	return &Clip{Index: index, PCM: pcm, SampleRate: d.outputRate}, nil
}

// decodeOpus decodes a single Opus frame to mono PCM at the output rate.
// The underlying gopus decoder is created on first use and reused for the
// rest of the session, preserving inter-frame prediction state.
func (d *Decoder) decodeOpus(frame []byte) ([]int16, int, error) {
	if d.opus == nil {
		dec, err := gopus.NewDecoder(d.outputRate, 1)
		if err != nil {
			return nil, 0, fmt.Errorf("create opus decoder: %w", err)
		}
		d.opus = dec
		d.opusRate = d.outputRate
	}
	pcm, err := d.opus.Decode(frame, opusMaxFrameSamples, false)
	if err != nil {
		return nil, 0, fmt.Errorf("opus decode: %w", err)
	}
	if len(pcm) == 0 {
		return nil, 0, errors.New("opus frame decoded to no samples")
	}
	return pcm, d.opusRate, nil
}

// Resample converts mono PCM from srcRate to dstRate using linear
// interpolation. The input is returned unchanged when the rates match.
func Resample(pcm []int16, srcRate, dstRate int) []int16 {
	if srcRate == dstRate || len(pcm) == 0 || srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	dstLen := int(int64(len(pcm)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}

	out := make([]int16, dstLen)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		s0 := pcm[idx]
		s1 := s0
		if idx+1 < len(pcm) {
			s1 = pcm[idx+1]
		}
		out[i] = int16(float64(s0)*(1-frac) + float64(s1)*frac)
	}
	return out
}
