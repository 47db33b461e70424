package rscache

import (
	"os"
)

// indexRecordWidth is the width in bytes of one record of an index file.
const indexRecordWidth = 6

// blockSize is the fixed size of one block in the data file.
const blockSize = 520

// IndexEntry is a plain value snapshot of one 6-byte index record,
// resolved to an absolute byte offset in the data file.
type IndexEntry struct {
	index uint8
	id    uint32

	// size is the number of payload bytes stored across the entry's block chain.
	size uint32

	// offset is the absolute byte offset of the entry's first block in the data file.
	offset int64
}

// Index returns the id of the index file this entry belongs to.
func (e IndexEntry) Index() uint8 { return e.index }

// ID returns the entry id within its index.
func (e IndexEntry) ID() uint32 { return e.id }

// Size returns the number of payload bytes across the entry's block chain,
// not counting the per-block headers.
func (e IndexEntry) Size() uint32 { return e.size }

// Offset returns the absolute byte offset of the entry's first block in the data file.
func (e IndexEntry) Offset() int64 { return e.offset }

// Block returns the block number of the entry's first block.
func (e IndexEntry) Block() uint32 { return uint32(e.offset / blockSize) }

// IndexFile is one "main_file_cache.idxN" file: a flat array of 6-byte
// records, each mapping an entry id to a (size, first block) pair.
type IndexFile struct {
	id   uint32
	file *os.File
}

// ID returns the numeric id of this index, parsed from its filename suffix.
func (idx *IndexFile) ID() uint32 { return idx.id }

// EntryCount returns the number of records in the index, i.e. its file
// length divided by the 6-byte record width (spec.md invariant 1:
// every index file's length is an exact multiple of 6).
func (idx *IndexFile) EntryCount() uint64 {
	fi, err := idx.file.Stat()
	if err != nil {
		return 0
	}
	return uint64(fi.Size()) / indexRecordWidth
}

// Lookup resolves entryID to an IndexEntry by reading its 6-byte record
// at offset entryID*6. A short seek or read (including an index file
// shorter than the implied offset) reports absence rather than an
// error, per spec.md §4.A. An all-zero record is a valid, existing
// "empty" entry (size 0): absence is solely a function of the read
// failing, not of the decoded size.
func (idx *IndexFile) Lookup(entryID uint32) (IndexEntry, bool) {
	var rec [indexRecordWidth]byte

	seekOffset := int64(entryID) * indexRecordWidth
	if off, err := idx.file.Seek(seekOffset, 0); err != nil || off != seekOffset {
		return IndexEntry{}, false
	}
	n, err := idx.file.Read(rec[:])
	if err != nil || n != indexRecordWidth {
		return IndexEntry{}, false
	}

	size := uint32(rec[0])<<16 | uint32(rec[1])<<8 | uint32(rec[2])
	firstBlock := uint32(rec[3])<<16 | uint32(rec[4])<<8 | uint32(rec[5])

	return IndexEntry{
		index:  uint8(idx.id),
		id:     entryID,
		size:   size,
		offset: int64(firstBlock) * blockSize,
	}, true
}
