package rscache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReadEntrySmallFormSingleBlock covers spec.md §8 scenario 1: index 0,
// entry 7, size 100, first_block 3, a single small-form block.
func TestReadEntrySmallFormSingleBlock(t *testing.T) {
	payload := seqBytes(100)
	b3 := block([]byte{0x00, 0x07, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, payload)

	data := make([]byte, 0, 4*blockSize)
	data = append(data, make([]byte, 3*blockSize)...) // blocks 0..2, unused
	data = append(data, b3...)

	mf := newTempMainFile(t, data)
	entry := IndexEntry{index: 0, id: 7, size: 100, offset: 3 * blockSize}

	got, err := mf.ReadEntry(entry)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Len(t, got, int(entry.Size()))
}

// TestReadEntrySmallFormMultiBlock covers spec.md §8 scenario 2: index 2,
// entry 5, size 1024, first_block 10, spanning two small-form blocks, plus
// the corruption case. Linkage is only validated on a block that is not
// the last in the chain (spec.md §4.B step e), so the corruption case
// perturbs the first (non-final) block's next_seq, not the last one.
func TestReadEntrySmallFormMultiBlock(t *testing.T) {
	p1 := seqBytes(512)
	p2 := seqBytes(512)

	build := func(firstSeq uint16) []byte {
		h1 := []byte{0x00, 0x05, byte(firstSeq >> 8), byte(firstSeq), 0x00, 0x00, 0x0B, 0x02}
		h2 := []byte{0x00, 0x05, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02}
		b10 := block(h1, p1)
		b11 := block(h2, p2)

		data := make([]byte, 0, 12*blockSize)
		data = append(data, make([]byte, 10*blockSize)...) // blocks 0..9, unused
		data = append(data, b10...)
		data = append(data, b11...)
		return data
	}

	entry := IndexEntry{index: 2, id: 5, size: 1024, offset: 10 * blockSize}

	t.Run("valid", func(t *testing.T) {
		mf := newTempMainFile(t, build(0))
		got, err := mf.ReadEntry(entry)
		require.NoError(t, err)
		want := append(append([]byte{}, p1...), p2...)
		assert.Equal(t, want, got)
	})

	t.Run("corrupted next_seq", func(t *testing.T) {
		mf := newTempMainFile(t, build(2))
		_, err := mf.ReadEntry(entry)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedDataSequence)
	})
}

// TestReadEntryLargeForm covers spec.md §8 scenario 3: index 5, entry
// 70000 (0x11170), size 600, first_block 42, large-form header.
func TestReadEntryLargeForm(t *testing.T) {
	p1 := seqBytes(510)
	p2 := seqBytes(90)

	// entry_id(4)=0x00011170, next_seq(2)=0, next_block(3)=43 (0x00002B), index_id(1)=5.
	h1 := []byte{0x00, 0x01, 0x11, 0x70, 0x00, 0x00, 0x00, 0x00, 0x2B, 0x05}
	// final block: next_seq/next_block are not validated.
	h2 := []byte{0x00, 0x01, 0x11, 0x70, 0x00, 0x01, 0x00, 0x00, 0x00, 0x05}
	b42 := block(h1, p1)
	b43 := block(h2, p2)

	data := make([]byte, 0, 44*blockSize)
	data = append(data, make([]byte, 42*blockSize)...) // blocks 0..41, unused
	data = append(data, b42...)
	data = append(data, b43...)

	mf := newTempMainFile(t, data)
	entry := IndexEntry{index: 5, id: 0x11170, size: 600, offset: 42 * blockSize}

	got, err := mf.ReadEntry(entry)
	require.NoError(t, err)
	assert.Len(t, got, 600)
	assert.Equal(t, p1, got[:510])
	assert.Equal(t, p2[:90], got[510:600])
}

// TestReadEntryBoundaryForm checks the small/large form boundary at entry id 0xFFFF/0x10000.
func TestReadEntryBoundaryForm(t *testing.T) {
	// entry id 0xFFFF: small form, 8-byte header, 512-byte payload.
	payload := seqBytes(5)
	small := block([]byte{0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, payload)
	mf := newTempMainFile(t, small)
	entry := IndexEntry{index: 0, id: 0xFFFF, size: 5, offset: 0}
	got, err := mf.ReadEntry(entry)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// entry id 0x10000: large form, 10-byte header, 510-byte payload.
	large := block([]byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, payload)
	mf2 := newTempMainFile(t, large)
	entry2 := IndexEntry{index: 0, id: 0x10000, size: 5, offset: 0}
	got2, err := mf2.ReadEntry(entry2)
	require.NoError(t, err)
	assert.Equal(t, payload, got2)
}

// TestReadEntryExactBlockBoundary ensures an entry whose size is an exact
// multiple of the per-block payload ends cleanly with no trailing partial block.
func TestReadEntryExactBlockBoundary(t *testing.T) {
	payloadPerBlock := blockSize - 8 // small form
	p1 := seqBytes(payloadPerBlock)
	p2 := seqBytes(payloadPerBlock)

	h1 := []byte{0x00, 0x09, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00}
	h2 := []byte{0x00, 0x09, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}

	b0 := block(h1, p1)
	b1 := block(h2, p2)
	data := append(append([]byte{}, b0...), b1...)

	mf := newTempMainFile(t, data)
	entry := IndexEntry{index: 0, id: 9, size: uint32(2 * payloadPerBlock), offset: 0}
	got, err := mf.ReadEntry(entry)
	require.NoError(t, err)
	assert.Len(t, got, 2*payloadPerBlock)
}

// TestReadEntryNoFileHandle checks the absent-data-file failure mode.
func TestReadEntryNoFileHandle(t *testing.T) {
	mf := &MainFile{fs: &FileSystem{}}
	_, err := mf.ReadEntry(IndexEntry{size: 1})
	assert.ErrorIs(t, err, ErrNoFileHandle)
}

// TestReadEntryShortBlockRead checks a chain pointing past the end of the data file.
func TestReadEntryShortBlockRead(t *testing.T) {
	// only block 0 exists; its valid linkage points on to the missing block 1.
	b0 := block([]byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00}, nil)
	mf := newTempMainFile(t, b0)
	entry := IndexEntry{index: 0, id: 1, size: 2000, offset: 0}
	_, err := mf.ReadEntry(entry)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedDataSequence)
}
