// Package reftable decodes the reference table embedded in some
// archive indices: a versioned, flag-driven, column-oriented binary
// structure describing a folder/file tree, per-folder CRCs, version
// numbers, optional whirlpool digests, and optional name hashes.
//
// The table is not stored on its own; it is the decompressed payload
// of a special entry, handed to Decode as a plain io.Reader (see the
// parent rscache package for how that entry is located and
// decompressed).
package reftable

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ErrInvalidData indicates an unsupported table version, a short read,
// or a duplicate folder/file id encountered while decoding.
var ErrInvalidData = errors.New("invalid reference table data")

// minVersion and maxVersion bound the supported table versions (spec.md §4.D).
const (
	minVersion = 5
	maxVersion = 7
)

// variableCountVersion is the first version to use the vari32 encoding
// for entry counts, folder ids, and file ids; earlier versions always
// use a plain u16 BE.
const variableCountVersion = 7

// revisionVersion is the first version to carry a revision field.
const revisionVersion = 6

const whirlpoolSize = 64

// Flags decomposes the reference table's single flag byte.
type Flags struct {
	HasNames           bool
	HasWhirlpool       bool
	UnknownDigestGroup bool
	UnknownHashGroup   bool
}

// File is one file entry within a Folder.
type File struct {
	ID       int32
	NameHash int32
}

// Folder is one folder entry within a Table.
type Folder struct {
	ID        int32
	NameHash  int32
	CRC32     int32
	Whirlpool []byte // nil unless the table has Flags.HasWhirlpool set, else exactly 64 bytes
	Version   uint32
	Files     map[int32]*File
}

// Table is a fully materialised reference table: every folder and file
// it describes, looked up by id.
type Table struct {
	Version  uint8
	Revision uint32
	Flags    Flags
	Folders  map[int32]*Folder
}

// Lookup returns the folder with the given id, and false if no such folder exists.
func (t *Table) Lookup(folderID int32) (*Folder, bool) {
	f, ok := t.Folders[folderID]
	return f, ok
}

// LastID returns the maximum folder id in the table, or 0 when empty.
func (t *Table) LastID() int32 {
	var last int32
	for id := range t.Folders {
		if id > last {
			last = id
		}
	}
	return last
}

// tableReader carries the table's version alongside a buffered byte
// source, so that a single readCount/readDelta call can dispatch between
// vari32 and u16 BE without scattering "if version >= 7" checks across
// the decode loop (see spec.md §9, "mixed-width record decoding").
type tableReader struct {
	br      *bufio.Reader
	version uint8
}

func (r *tableReader) readU8() (uint8, error) {
	return r.br.ReadByte()
}

func (r *tableReader) readU16() (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r.br, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func (r *tableReader) readU32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r.br, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func (r *tableReader) readI32() (int32, error) {
	v, err := r.readU32()
	return int32(v), err
}

// readVari32 peeks one byte; if its signed interpretation is negative
// (high bit set), it reads 4 bytes BE and masks off the sign bit,
// otherwise it reads 2 bytes BE zero-extended. Only used for version >= 7.
func (r *tableReader) readVari32() (int32, error) {
	peek, err := r.br.Peek(1)
	if err != nil {
		return 0, err
	}
	if int8(peek[0]) < 0 {
		v, err := r.readU32()
		if err != nil {
			return 0, err
		}
		return int32(v & 0x7FFFFFFF), nil
	}
	v, err := r.readU16()
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

// readCount reads an entry-count or file-count field: vari32 on
// version >= 7, plain u16 BE otherwise.
func (r *tableReader) readCount() (int32, error) {
	if r.version >= variableCountVersion {
		return r.readVari32()
	}
	v, err := r.readU16()
	return int32(v), err
}

// readDelta reads one element of a delta-coded id stream, same width rule as readCount.
func (r *tableReader) readDelta() (int32, error) {
	return r.readCount()
}

// Decode parses a reference table from r. size is the decompressed
// entry's length, used to bound reads so that a table whose declared
// entry count would run past the end of its own stream fails fast with
// ErrInvalidData instead of reading into whatever follows r (spec.md
// §3 invariant 6). Pass a negative size if the length is unknown.
func Decode(r io.Reader, size int64) (*Table, error) {
	if size >= 0 {
		r = io.LimitReader(r, size)
	}
	tr := &tableReader{br: bufio.NewReader(r)}

	t := &Table{}

	version, err := tr.readU8()
	if err != nil {
		return nil, errors.Wrap(ErrInvalidData, "reading version")
	}
	if version < minVersion || version > maxVersion {
		return nil, errors.Wrapf(ErrInvalidData, "unsupported version %d", version)
	}
	t.Version = version
	tr.version = version

	if version >= revisionVersion {
		rev, err := tr.readU32()
		if err != nil {
			return nil, errors.Wrap(ErrInvalidData, "reading revision")
		}
		t.Revision = rev
	}

	flagByte, err := tr.readU8()
	if err != nil {
		return nil, errors.Wrap(ErrInvalidData, "reading flags")
	}
	t.Flags = Flags{
		HasNames:           flagByte&0x1 != 0,
		HasWhirlpool:       flagByte&0x2 != 0,
		UnknownDigestGroup: flagByte&0x4 != 0,
		UnknownHashGroup:   flagByte&0x8 != 0,
	}

	n, err := tr.readCount()
	if err != nil {
		return nil, errors.Wrap(ErrInvalidData, "reading entry count")
	}
	if n < 0 {
		return nil, errors.Wrap(ErrInvalidData, "negative entry count")
	}

	folders := make([]*Folder, n)
	var running int32
	for i := int32(0); i < n; i++ {
		delta, err := tr.readDelta()
		if err != nil {
			return nil, errors.Wrap(ErrInvalidData, "reading folder id delta")
		}
		running += delta
		folders[i] = &Folder{ID: running}
	}

	if t.Flags.HasNames {
		for i := int32(0); i < n; i++ {
			v, err := tr.readI32()
			if err != nil {
				return nil, errors.Wrap(ErrInvalidData, "reading folder name hash")
			}
			folders[i].NameHash = v
		}
	}

	for i := int32(0); i < n; i++ {
		v, err := tr.readI32()
		if err != nil {
			return nil, errors.Wrap(ErrInvalidData, "reading folder crc32")
		}
		folders[i].CRC32 = v
	}

	if t.Flags.UnknownHashGroup {
		for i := int32(0); i < n; i++ {
			if _, err := tr.readI32(); err != nil {
				return nil, errors.Wrap(ErrInvalidData, "discarding unknown hash group value")
			}
		}
	}

	if t.Flags.HasWhirlpool {
		for i := int32(0); i < n; i++ {
			buf := make([]byte, whirlpoolSize)
			if _, err := io.ReadFull(tr.br, buf); err != nil {
				return nil, errors.Wrap(ErrInvalidData, "reading whirlpool digest")
			}
			folders[i].Whirlpool = buf
		}
	}

	if t.Flags.UnknownDigestGroup {
		for i := int32(0); i < n; i++ {
			if _, err := tr.readI32(); err != nil {
				return nil, errors.Wrap(ErrInvalidData, "discarding unknown digest group value")
			}
			if _, err := tr.readI32(); err != nil {
				return nil, errors.Wrap(ErrInvalidData, "discarding unknown digest group value")
			}
		}
	}

	for i := int32(0); i < n; i++ {
		v, err := tr.readU32()
		if err != nil {
			return nil, errors.Wrap(ErrInvalidData, "reading folder version")
		}
		folders[i].Version = v
	}

	fileCounts := make([]int32, n)
	for i := int32(0); i < n; i++ {
		fc, err := tr.readCount()
		if err != nil {
			return nil, errors.Wrap(ErrInvalidData, "reading file count")
		}
		if fc < 0 {
			return nil, errors.Wrap(ErrInvalidData, "negative file count")
		}
		fileCounts[i] = fc
	}

	files := make([][]*File, n)
	for i := int32(0); i < n; i++ {
		slot := make([]*File, fileCounts[i])
		var fileRunning int32
		for j := int32(0); j < fileCounts[i]; j++ {
			delta, err := tr.readDelta()
			if err != nil {
				return nil, errors.Wrap(ErrInvalidData, "reading file id delta")
			}
			fileRunning += delta
			slot[j] = &File{ID: fileRunning}
		}
		files[i] = slot
	}

	if t.Flags.HasNames {
		for i := int32(0); i < n; i++ {
			for _, f := range files[i] {
				v, err := tr.readI32()
				if err != nil {
					return nil, errors.Wrap(ErrInvalidData, "reading file name hash")
				}
				f.NameHash = v
			}
		}
	}

	t.Folders = make(map[int32]*Folder, n)
	for i := int32(0); i < n; i++ {
		fd := folders[i]
		fd.Files = make(map[int32]*File, len(files[i]))
		for _, f := range files[i] {
			if _, dup := fd.Files[f.ID]; dup {
				return nil, errors.Wrapf(ErrInvalidData, "duplicate file id %d in folder %d", f.ID, fd.ID)
			}
			fd.Files[f.ID] = f
		}
		if _, dup := t.Folders[fd.ID]; dup {
			return nil, errors.Wrapf(ErrInvalidData, "duplicate folder id %d", fd.ID)
		}
		t.Folders[fd.ID] = fd
	}

	return t, nil
}
