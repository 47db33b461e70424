package rscache

import (
	"bytes"
	"io"

	dsbzip2 "github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Codec identifies the compression algorithm an entry's payload was
// stored with.
type Codec uint8

// Recognized codecs. Unknown tags degrade to CodecNone per spec.md §3.
const (
	CodecNone Codec = iota
	CodecBzip2
	CodecGzip
	CodecLzma
)

func codecFromTag(tag uint8) Codec {
	switch tag {
	case 1:
		return CodecBzip2
	case 2:
		return CodecGzip
	case 3:
		return CodecLzma
	default:
		return CodecNone
	}
}

// entryHeaderSize is the width in bytes of the compression header at
// the start of a reassembled entry payload.
const entryHeaderSize = 9

// EntryHeader is the 9-byte compression header found at the start of
// every reassembled entry payload.
type EntryHeader struct {
	Codec Codec

	// RawSize is the length of the codec-specific stream that follows the header.
	RawSize uint32

	// RealSize is the decompressed length. Only meaningful when Codec != CodecNone.
	RealSize uint32
}

func parseEntryHeader(b []byte) EntryHeader {
	return EntryHeader{
		Codec:    codecFromTag(b[0]),
		RawSize:  uint32(b[1])<<24 | uint32(b[2])<<16 | uint32(b[3])<<8 | uint32(b[4]),
		RealSize: uint32(b[5])<<24 | uint32(b[6])<<16 | uint32(b[7])<<8 | uint32(b[8]),
	}
}

// ReadHeader reads and parses the 9-byte compression header of entry,
// without reading or decompressing the remainder of its payload.
// Returns false if the data file is absent or the read is short.
func (mf *MainFile) ReadHeader(entry IndexEntry) (EntryHeader, bool) {
	if mf.file == nil {
		return EntryHeader{}, false
	}

	headerSize := int64(8)
	if entry.id > smallFormThreshold {
		headerSize = 10
	}

	var buf [entryHeaderSize]byte
	off := entry.offset + headerSize
	if got, err := mf.file.Seek(off, 0); err != nil || got != off {
		return EntryHeader{}, false
	}
	n, err := mf.file.Read(buf[:])
	if err != nil || n != entryHeaderSize {
		return EntryHeader{}, false
	}

	return parseEntryHeader(buf[:]), true
}

// codecDataOffset is where the archive's truncated bzip2 streams
// resume after the codec tag; the decoder reinserts the standard 4-byte
// "BZh1" magic there before decompressing.
const codecDataOffset = 5

// ReadDecompressed reassembles entry's payload via ReadEntry, parses
// its compression header from the already-decoded stream prefix, and
// dispatches to the appropriate codec, per spec.md §4.C.
func (mf *MainFile) ReadDecompressed(entry IndexEntry) ([]byte, error) {
	data, err := mf.ReadEntry(entry)
	if err != nil {
		return nil, err
	}
	if len(data) < entryHeaderSize {
		return nil, errors.Wrap(ErrCorruptedData, "entry shorter than its own compression header")
	}
	header := parseEntryHeader(data)

	switch header.Codec {
	case CodecNone:
		// No RealSize field in this branch: the data begins immediately
		// after RawSize, i.e. 5 bytes in (codec tag + RawSize only).
		end := codecDataOffset + int(header.RawSize)
		if end > len(data) {
			return nil, errors.Wrap(ErrCorruptedData, "raw_size exceeds payload")
		}
		return data[codecDataOffset:end], nil

	case CodecGzip:
		if header.RealSize == 0 {
			return []byte{}, nil
		}
		r, err := gzip.NewReader(bytes.NewReader(data[entryHeaderSize:]))
		if err != nil {
			return nil, errors.Wrap(ErrCorruptedData, err.Error())
		}
		out := make([]byte, header.RealSize)
		if _, err := io.ReadFull(r, out); err != nil {
			return nil, errors.Wrap(ErrCorruptedData, err.Error())
		}
		return out, nil

	case CodecBzip2:
		if header.RealSize == 0 {
			return []byte{}, nil
		}
		if len(data) < codecDataOffset+4 {
			return nil, errors.Wrap(ErrCorruptedData, "payload too short to patch bzip2 magic")
		}
		// The archive omits the standard "BZh1" magic to save space.
		data[5], data[6], data[7], data[8] = 'B', 'Z', 'h', '1'

		r, err := dsbzip2.NewReader(bytes.NewReader(data[codecDataOffset:]), nil)
		if err != nil {
			return nil, errors.Wrap(ErrCorruptedData, err.Error())
		}
		out := make([]byte, header.RealSize)
		if _, err := io.ReadFull(r, out); err != nil {
			return nil, errors.Wrap(ErrCorruptedData, err.Error())
		}
		return out, nil

	case CodecLzma:
		return nil, errors.Wrap(ErrCorruptedData, "lzma compression is not supported")

	default:
		return nil, errors.Wrap(ErrCorruptedData, "unknown compression codec")
	}
}
