package rscache

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// smallFormThreshold is the largest entry id still addressed with the
// 8-byte (small form) block header; ids above it use the 10-byte large
// form. The form is chosen by the logical entry id being read, not by
// any on-disk flag.
const smallFormThreshold = 0xFFFF

// blockHeader is the per-block linkage metadata parsed from the first
// 8 or 10 bytes of a 520-byte block.
type blockHeader struct {
	large bool

	entryID    uint32
	nextSeq    uint16
	nextBlock  uint32
	indexID    uint8
	headerSize int
}

// parseBlockHeader parses a block's header according to the form
// implied by large. data must be the full 520-byte block.
func parseBlockHeader(large bool, data *[blockSize]byte) blockHeader {
	if large {
		return blockHeader{
			large:      true,
			entryID:    uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3]),
			nextSeq:    uint16(data[4])<<8 | uint16(data[5]),
			nextBlock:  uint32(data[6])<<16 | uint32(data[7])<<8 | uint32(data[8]),
			indexID:    data[9],
			headerSize: 10,
		}
	}
	return blockHeader{
		large:      false,
		entryID:    uint32(data[0])<<8 | uint32(data[1]),
		nextSeq:    uint16(data[2])<<8 | uint16(data[3]),
		nextBlock:  uint32(data[4])<<16 | uint32(data[5])<<8 | uint32(data[6]),
		indexID:    data[7],
		headerSize: 8,
	}
}

// MainFile is the "main_file_cache.dat2" data file: a flat array of
// fixed-size 520-byte blocks. Entries are reassembled by walking a
// linked chain of blocks.
type MainFile struct {
	fs   *FileSystem
	file *os.File // nil if the data file was absent at Open time
}

// Exists reports whether the data file was present when the FileSystem was opened.
func (mf *MainFile) Exists() bool { return mf.file != nil }

// NumBlocks returns the number of blocks in the data file, rounding up
// a trailing partial block, and false if the data file is absent.
func (mf *MainFile) NumBlocks() (uint64, bool) {
	if mf.file == nil {
		return 0, false
	}
	fi, err := mf.file.Stat()
	if err != nil {
		return 0, false
	}
	return (uint64(fi.Size()) + blockSize - 1) / blockSize, true
}

// ReadBlock reads the 520-byte block with the given block number.
// Returns false if the data file is absent or the read is short (e.g.
// the block is beyond the end of the file).
func (mf *MainFile) ReadBlock(block uint32) ([blockSize]byte, bool) {
	var data [blockSize]byte
	if mf.file == nil {
		return data, false
	}
	off := int64(block) * blockSize
	if got, err := mf.file.Seek(off, 0); err != nil || got != off {
		return data, false
	}
	n, err := mf.file.Read(data[:])
	if err != nil || n != blockSize {
		return data, false
	}
	return data, true
}

// ReadEntry reassembles an entry's raw (still-compressed) payload by
// walking its block chain, per spec.md §4.B. The returned slice is
// exactly entry.Size() bytes long, or an error is returned.
func (mf *MainFile) ReadEntry(entry IndexEntry) ([]byte, error) {
	if mf.file == nil {
		return nil, ErrNoFileHandle
	}

	large := entry.id > smallFormThreshold
	headerSize := 8
	if large {
		headerSize = 10
	}
	payloadPerBlock := blockSize - headerSize

	data := make([]byte, 0, entry.size)

	currentBlock := entry.Block()
	remaining := entry.size
	expectedSeq := uint16(0)

	for remaining > 0 {
		block, ok := mf.ReadBlock(currentBlock)
		if !ok {
			mf.fs.logf(logrus.DebugLevel, "short read of block %d for entry %d/%d", currentBlock, entry.index, entry.id)
			return nil, errors.Wrapf(ErrMalformedDataSequence, "reading block %d", currentBlock)
		}
		hdr := parseBlockHeader(large, &block)

		take := payloadPerBlock
		if remaining < uint32(take) {
			take = int(remaining)
		}
		data = append(data, block[hdr.headerSize:hdr.headerSize+take]...)
		remaining -= uint32(take)

		// The final block's next_seq/next_block/entry_id are not meaningful
		// and must not be validated; only check linkage when another block
		// is still expected.
		if remaining > 0 {
			if hdr.indexID != entry.index || hdr.nextSeq != expectedSeq || hdr.entryID != entry.id {
				mf.fs.logf(logrus.WarnLevel, "block %d linkage mismatch for entry %d/%d", currentBlock, entry.index, entry.id)
				return nil, errors.Wrapf(ErrMalformedDataSequence, "block %d linkage mismatch", currentBlock)
			}
		}

		currentBlock = hdr.nextBlock
		expectedSeq++
	}

	return data, nil
}
