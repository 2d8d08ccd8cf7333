package transport

import (
	"errors"
	"io"
	"os"
)

const (
	chunkSize      = 8192
	reportInterval = 128 * 1024
)

// progressReader streams a file in fixed chunks and reports the sent
// percentage every reportInterval bytes and at EOF.
type progressReader struct {
	file       *os.File
	size       int64
	sent       int64
	lastReport int64
	done       bool
	report     ProgressFunc
}

func newProgressReader(file *os.File, size int64, report ProgressFunc) *progressReader {
	if report == nil {
		report = func(int) {}
	}
	return &progressReader{file: file, size: size, report: report}
}

func (r *progressReader) Read(p []byte) (int, error) {
	if len(p) > chunkSize {
		p = p[:chunkSize]
	}
	n, err := r.file.Read(p)
	if n > 0 {
		r.sent += int64(n)
		if r.sent-r.lastReport >= reportInterval {
			r.lastReport = r.sent
			r.report(percentOf(r.sent, r.size))
		}
	}
	if errors.Is(err, io.EOF) && !r.done {
		r.done = true
		r.report(percentOf(r.sent, r.size))
	}
	return n, err
}

// Seek lets SDK clients rewind the body for retries; counters restart.
func (r *progressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := r.file.Seek(offset, whence)
	if err != nil {
		return pos, err
	}
	r.sent = pos
	r.lastReport = pos
	r.done = false
	return pos, nil
}

func percentOf(sent, size int64) int {
	if size <= 0 {
		return 100
	}
	return int(min(100, sent*100/size))
}

// sourceSize prefers the size on disk; the enqueue-time size is a fallback.
func sourceSize(file *os.File, fallback int64) int64 {
	if info, err := file.Stat(); err == nil {
		return info.Size()
	}
	return fallback
}
