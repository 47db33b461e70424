package rscache

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// mainFileName is the data file's fixed name within the archive directory.
const mainFileName = "main_file_cache.dat2"

// indexFilePrefix names index files; the numeric index id starts right
// after this prefix (character offset 19, per spec.md §6).
const indexFilePrefix = "main_file_cache.idx"

// FileSystem is a handle onto an opened archive directory. It owns the
// data file handle and every index file handle for its lifetime; all
// methods mutate the internal seek cursor of these handles and
// therefore require exclusive access during a call — FileSystem is not
// safe for concurrent use by multiple goroutines. Separate FileSystem
// values opened against the same directory are independent.
type FileSystem struct {
	dir string

	mainfile MainFile
	indices  map[uint32]*IndexFile

	log *logrus.Logger
}

// Open opens the archive directory at dir, enumerating its data file
// and index files. The data file is optional: its absence only makes
// later reads fail with ErrNoFileHandle, not Open itself.
func Open(dir string, opts ...Option) (*FileSystem, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrap(ErrFileNotFound, err.Error())
	}
	if !info.IsDir() {
		return nil, ErrInvalidDirectory
	}

	fs := &FileSystem{
		dir:     dir,
		indices: make(map[uint32]*IndexFile),
	}
	for _, opt := range opts {
		opt(fs)
	}
	fs.mainfile.fs = fs

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(ErrFileNotFound, err.Error())
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, indexFilePrefix) {
			continue
		}
		id, err := strconv.ParseUint(name[len(indexFilePrefix):], 10, 32)
		if err != nil {
			continue // not a valid "main_file_cache.idxN" name; ignore
		}
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		fs.indices[uint32(id)] = &IndexFile{id: uint32(id), file: f}
	}

	if f, err := os.Open(filepath.Join(dir, mainFileName)); err == nil {
		fs.mainfile.file = f
	}

	return fs, nil
}

// Index returns the index file with the given id, and false if no such
// index file was found in the archive directory.
func (fs *FileSystem) Index(id uint32) (*IndexFile, bool) {
	idx, ok := fs.indices[id]
	return idx, ok
}

// MainFile returns the "main_file_cache.dat2" data file handle. Its
// Exists method reports whether the underlying file was actually
// present at Open time.
func (fs *FileSystem) MainFile() *MainFile {
	return &fs.mainfile
}

// Close closes the data file and every index file owned by fs.
func (fs *FileSystem) Close() error {
	var firstErr error
	if fs.mainfile.file != nil {
		if err := fs.mainfile.file.Close(); err != nil {
			firstErr = err
		}
	}
	for _, idx := range fs.indices {
		if err := idx.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
