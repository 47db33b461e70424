package rscache

import (
	"os"
	"testing"
)

// newTempMainFile creates a MainFile backed by a temp file containing data,
// building small, fully specified byte buffers in-memory rather than
// checking in binary archive samples.
func newTempMainFile(t *testing.T, data []byte) *MainFile {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "data-*.dat2")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	fs := &FileSystem{}
	mf := &MainFile{fs: fs, file: f}
	return mf
}

// block builds one 520-byte block given an already-encoded header prefix
// and payload bytes; the remainder is zero-padded.
func block(header []byte, payload []byte) []byte {
	b := make([]byte, blockSize)
	copy(b, header)
	copy(b[len(header):], payload)
	return b
}

// seqBytes returns n bytes 0x00, 0x01, 0x02, ... wrapping at 256.
func seqBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}
