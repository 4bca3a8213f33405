package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// fallback format assumed when a WAV file carries a data chunk before fmt.
const (
	fallbackRate     = 22050
	fallbackChannels = 1
)

// wavFormat holds the metadata extracted from a RIFF/WAVE header.
type wavFormat struct {
	dataOffset int // byte offset of the first PCM sample
	dataSize   int // byte length of the data chunk
	sampleRate int
	channels   int
	bitDepth   int
}

// parseWAVHeader walks the RIFF chunk list and returns the format described by
// the "fmt " sub-chunk plus the location of the "data" chunk. Walking the
// chunks is required because the fmt chunk size varies between encoders; a
// fixed 44-byte offset is not reliable.
func parseWAVHeader(wav []byte) (wavFormat, error) {
	if len(wav) < 12 {
		return wavFormat{}, errors.New("audio: WAV payload too short for a RIFF header")
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return wavFormat{}, errors.New("audio: payload is not a RIFF/WAVE container")
	}

	var f wavFormat
	foundFmt := false

	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 && offset+8+16 <= len(wav) {
				fmtData := wav[offset+8:]
				f.channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
				f.sampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
				f.bitDepth = int(binary.LittleEndian.Uint16(fmtData[14:16]))
				foundFmt = true
			}
		case "data":
			f.dataOffset = offset + 8
			f.dataSize = min(chunkSize, len(wav)-f.dataOffset)
			if !foundFmt {
				f.sampleRate = fallbackRate
				f.channels = fallbackChannels
				f.bitDepth = 16
			}
			return f, nil
		}

		// Chunks are word-aligned: odd sizes carry one pad byte.
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return wavFormat{}, errors.New("audio: WAV payload missing data chunk")
}

// decodeWAV extracts mono 16-bit samples from a WAV container. Stereo input
// is downmixed by averaging the channel pair. Only 16-bit PCM is accepted.
func decodeWAV(wav []byte) ([]int16, int, error) {
	f, err := parseWAVHeader(wav)
	if err != nil {
		return nil, 0, err
	}
	if f.bitDepth != 16 {
		return nil, 0, fmt.Errorf("audio: unsupported WAV bit depth %d (want 16)", f.bitDepth)
	}
	if f.channels < 1 || f.channels > 2 {
		return nil, 0, fmt.Errorf("audio: unsupported WAV channel count %d", f.channels)
	}

	data := wav[f.dataOffset : f.dataOffset+f.dataSize]
	frameBytes := 2 * f.channels
	frames := len(data) / frameBytes

	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		base := i * frameBytes
		s := int16(binary.LittleEndian.Uint16(data[base : base+2]))
		if f.channels == 2 {
			r := int16(binary.LittleEndian.Uint16(data[base+2 : base+4]))
			s = int16((int32(s) + int32(r)) / 2)
		}
		out[i] = s
	}
	return out, f.sampleRate, nil
}
