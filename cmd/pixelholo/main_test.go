package main

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPCMSink_WritesLittleEndianSamples(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.pcm")
	sink, err := newPCMSink(path)
	if err != nil {
		t.Fatalf("newPCMSink: %v", err)
	}

	sink.Write([]int16{0, 1, -1, 32767})
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read capture: %v", err)
	}
	want := []int16{0, 1, -1, 32767}
	if len(raw) != 2*len(want) {
		t.Fatalf("capture size = %d bytes, want %d", len(raw), 2*len(want))
	}
	for i, w := range want {
		if got := int16(binary.LittleEndian.Uint16(raw[2*i:])); got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}
}

func TestPCMSink_CloseReportsWriteFailure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.pcm")
	sink, err := newPCMSink(path)
	if err != nil {
		t.Fatalf("newPCMSink: %v", err)
	}

	// Closing the file underneath the sink makes the next frame write fail,
	// standing in for a full disk.
	if err := sink.f.Close(); err != nil {
		t.Fatalf("close underlying file: %v", err)
	}
	sink.Write([]int16{1, 2, 3})

	if err := sink.Close(); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("Close = %v, want the recorded write failure", err)
	}
}
