package rscache

import "github.com/sirupsen/logrus"

// Option configures a FileSystem at Open time.
type Option func(*FileSystem)

// WithLogger attaches a logrus logger used for diagnostic messages about
// block-chain corruption and short reads, logged just before the
// corresponding typed error is returned. A nil logger (the default)
// means the FileSystem stays silent.
func WithLogger(log *logrus.Logger) Option {
	return func(fs *FileSystem) {
		fs.log = log
	}
}

// logf is a no-op when no logger was attached.
func (fs *FileSystem) logf(level logrus.Level, format string, args ...interface{}) {
	if fs.log == nil {
		return
	}
	fs.log.WithField("component", "rscache").Logf(level, format, args...)
}
