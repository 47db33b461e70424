package rscache

import "github.com/pkg/errors"

// Sentinel errors returned by this package. Use errors.Is (or
// errors.Cause, since call sites wrap these with github.com/pkg/errors
// to add context) to test for a specific failure.
var (
	// ErrFileNotFound indicates the archive directory does not exist or cannot be read.
	ErrFileNotFound = errors.New("the folder specified could not be found or read from")

	// ErrInvalidDirectory indicates the given path is not a directory.
	ErrInvalidDirectory = errors.New("the specified directory is not a valid directory")

	// ErrNoFileHandle indicates the data file was not opened (absent from the directory).
	ErrNoFileHandle = errors.New("the filesystem did not load a file yet")

	// ErrMalformedDataSequence indicates a short block read or a block-chain linkage violation.
	ErrMalformedDataSequence = errors.New("the data sequence did not complete correctly")

	// ErrCorruptedData indicates a codec reported an error or a short decompression.
	ErrCorruptedData = errors.New("the data was corrupt")
)
