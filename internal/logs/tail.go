package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	maxLineBytes = 1024 * 1024
	pollInterval = 250 * time.Millisecond
)

// Options selects what Read returns. A negative Offset means "the last Limit
// lines"; otherwise reading starts at Offset bytes.
type Options struct {
	Offset int64
	Limit  int
	// Wait bounds how long Read polls for new lines when none are available.
	Wait  time.Duration
	Match func(line string) bool
}

// Chunk is a batch of lines and the offset to resume from.
type Chunk struct {
	Lines  []string
	Offset int64
}

// Read returns lines from path per opts. A missing file yields an empty
// chunk at offset zero so callers can wait for the daemon to create it.
func Read(ctx context.Context, path string, opts Options) (Chunk, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return Chunk{}, nil
	}
	if err != nil {
		return Chunk{}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return Chunk{}, fmt.Errorf("log path %q is a directory", path)
	}

	var chunk Chunk
	if opts.Offset < 0 {
		chunk, err = lastLines(path, opts.Limit, opts.Match)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			// Rotated or truncated: start over.
			offset = 0
		}
		chunk, err = linesFrom(path, offset, opts.Match)
	}
	if err != nil || len(chunk.Lines) > 0 || opts.Wait <= 0 {
		return chunk, err
	}
	return poll(ctx, path, chunk.Offset, opts)
}

// JobFilter keeps structured log lines that carry the given job id.
func JobFilter(id int64) func(string) bool {
	needle := strconv.FormatInt(id, 10)
	keys := []string{"job_id=" + needle, `"job_id":` + needle}
	return func(line string) bool {
		for _, key := range keys {
			if idx := strings.Index(line, key); idx >= 0 {
				end := idx + len(key)
				if end == len(line) || line[end] < '0' || line[end] > '9' {
					return true
				}
			}
		}
		return false
	}
}

func lastLines(path string, limit int, match func(string) bool) (Chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		return Chunk{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return Chunk{}, fmt.Errorf("seek log file: %w", err)
		}
		return Chunk{Offset: end}, nil
	}

	ring := make([]string, 0, limit)
	start := 0
	end, err := scan(file, func(line string) {
		if match != nil && !match(line) {
			return
		}
		if len(ring) < limit {
			ring = append(ring, line)
			return
		}
		ring[start] = line
		start = (start + 1) % limit
	})
	if err != nil {
		return Chunk{}, err
	}
	lines := append(append([]string{}, ring[start:]...), ring[:start]...)
	return Chunk{Lines: lines, Offset: end}, nil
}

func linesFrom(path string, offset int64, match func(string) bool) (Chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		return Chunk{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Chunk{}, fmt.Errorf("seek log file: %w", err)
	}
	var lines []string
	end, err := scan(file, func(line string) {
		if match == nil || match(line) {
			lines = append(lines, line)
		}
	})
	if err != nil {
		return Chunk{}, err
	}
	return Chunk{Lines: lines, Offset: end}, nil
}

// scan feeds every complete line to fn and returns the file offset after
// the last one. A trailing partial line is left for the next read.
func scan(file *os.File, fn func(string)) (int64, error) {
	pos, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("determine log offset: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return pos, nil
		}
		if err != nil {
			return pos, fmt.Errorf("read log file: %w", err)
		}
		pos += int64(len(line))
		if len(line) > maxLineBytes {
			line = line[:maxLineBytes]
		}
		fn(strings.TrimRight(line, "\r\n"))
	}
}

func poll(ctx context.Context, path string, offset int64, opts Options) (Chunk, error) {
	deadline := time.NewTimer(opts.Wait)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Chunk{Offset: offset}, ctx.Err()
		case <-deadline.C:
			return Chunk{Offset: offset}, nil
		case <-ticker.C:
		}
		chunk, err := linesFrom(path, offset, opts.Match)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Chunk{Offset: offset}, err
		}
		if len(chunk.Lines) > 0 {
			return chunk, nil
		}
		offset = chunk.Offset
	}
}
