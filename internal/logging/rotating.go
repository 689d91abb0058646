package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// rotatingFile is a small size-triggered log rotator: once the file grows
// past maxBytes it is renamed aside and a fresh file is opened, keeping a
// bounded number of old files.
type rotatingFile struct {
	path     string
	maxBytes int64
	backups  int
	f        *os.File
	out      *log.Logger
	written  int64
}

// NewRotatingFile opens (creating if necessary) a log file at path that
// rotates to path.1, path.2, ... once it exceeds maxSizeMB megabytes, keeping
// at most backups old files.
func NewRotatingFile(path string, maxSizeMB int, backups int) (Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logging: create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	info, _ := f.Stat()
	var size int64
	if info != nil {
		size = info.Size()
	}
	rf := &rotatingFile{
		path:     path,
		maxBytes: int64(maxSizeMB) * 1024 * 1024,
		backups:  backups,
		f:        f,
		written:  size,
	}
	rf.out = log.New(rf, "", log.LstdFlags)
	return &stdLogger{out: rf.out, level: levelDebug}, nil
}

// Write implements io.Writer so the embedded *log.Logger can write through
// rotation checks.
func (r *rotatingFile) Write(p []byte) (int, error) {
	if r.written+int64(len(p)) > r.maxBytes {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := r.f.Write(p)
	r.written += int64(n)
	return n, err
}

func (r *rotatingFile) rotate() error {
	r.f.Close()
	for i := r.backups; i >= 1; i-- {
		older := fmt.Sprintf("%s.%d", r.path, i)
		newer := fmt.Sprintf("%s.%d", r.path, i-1)
		if i == 1 {
			newer = r.path
		}
		os.Rename(newer, older)
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	r.f = f
	r.written = 0
	return nil
}
