// Package streamio decodes the newline-delimited streaming responses emitted
// by the pixelholo inference service. A [LineReader] turns a raw response body
// into discrete text lines, and [Parse] turns each line into a typed [Record].
package streamio

import (
	"bytes"
	"io"
	"strings"
)

// readChunkSize is the size of each read issued against the underlying stream.
const readChunkSize = 4096

// LineSource is a sequential source of complete text lines. Next returns
// [io.EOF] after the final line has been delivered. Implementations are the
// HTTP chunked-body [LineReader] and the WebSocket transport in pkg/voiceclone.
type LineSource interface {
	Next() (string, error)
	Close() error
}

// Compile-time interface assertion.
var _ LineSource = (*LineReader)(nil)

// LineReader reads an io.Reader incrementally and yields complete lines split
// on '\n'. Lines are trimmed of surrounding whitespace; blank lines are
// skipped. A trailing fragment without a terminating newline is emitted as the
// final line once the stream ends.
//
// Splitting happens on the raw byte stream, so multi-byte UTF-8 sequences that
// straddle a read boundary are reassembled before the line is produced.
//
// LineReader is not safe for concurrent use.
type LineReader struct {
	r       io.ReadCloser
	buf     []byte // undelivered bytes carried across reads
	err     error  // sticky terminal error (io.EOF after the final line)
	pending error  // read error held back until buffered complete lines drain
}

// NewLineReader wraps r in a LineReader. The reader takes ownership of r and
// closes it via [LineReader.Close].
func NewLineReader(r io.ReadCloser) *LineReader {
	return &LineReader{r: r}
}

// Next returns the next complete line. It blocks on the underlying reader
// until a newline arrives or the stream ends. On stream end any buffered
// trailing fragment is returned first, then io.EOF. A mid-stream transport
// error surfaces only after the complete lines received before it have been
// delivered; the unterminated fragment is discarded, since its completeness
// cannot be guaranteed.
//
// A Read returning bytes together with its error, as the io.Reader contract
// permits, is handled the same way: the bytes are scanned for lines first.
func (lr *LineReader) Next() (string, error) {
	if lr.err != nil {
		return "", lr.err
	}

	for {
		// Deliver any complete line already buffered.
		if line, ok := lr.takeLine(); ok {
			return line, nil
		}

		if err := lr.pending; err != nil {
			if err == io.EOF {
				// Flush the unterminated trailing fragment, if any.
				if tail := strings.TrimSpace(string(lr.buf)); tail != "" {
					lr.buf = nil
					lr.err = io.EOF
					return tail, nil
				}
				lr.buf = nil
				lr.err = io.EOF
				return "", io.EOF
			}
			lr.buf = nil
			lr.err = err
			return "", err
		}

		chunk := make([]byte, readChunkSize)
		n, err := lr.r.Read(chunk)
		if n > 0 {
			lr.buf = append(lr.buf, chunk[:n]...)
		}
		if err != nil {
			lr.pending = err
		}
	}
}

// takeLine scans the buffer for the next non-blank line, consuming delimiters
// and blank lines as it goes. Returns ok=false when no complete line remains.
func (lr *LineReader) takeLine() (string, bool) {
	for {
		idx := bytes.IndexByte(lr.buf, '\n')
		if idx < 0 {
			return "", false
		}
		line := strings.TrimSpace(string(lr.buf[:idx]))
		lr.buf = lr.buf[idx+1:]
		if line != "" {
			return line, true
		}
	}
}

// Close closes the underlying reader. Subsequent Next calls return the sticky
// error if one is set, or the close-induced read error otherwise.
func (lr *LineReader) Close() error {
	return lr.r.Close()
}
