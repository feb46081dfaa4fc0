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

const pollInterval = 250 * time.Millisecond

// Matcher selects log lines. A nil Matcher accepts everything.
type Matcher func(line string) bool

// TailOptions controls a single Tail call.
type TailOptions struct {
	// Offset is the byte position to read from; negative reads the last
	// Limit matching lines.
	Offset int64
	Limit  int
	// Follow waits up to Wait for new lines when none are available.
	Follow bool
	Wait   time.Duration
	Match  Matcher
}

// TailResult holds the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads path according to opts. A missing file yields no lines and a
// zero offset.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	result := TailResult{Offset: opts.Offset}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			result.Offset = 0
			return result, nil
		}
		return result, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return result, fmt.Errorf("log path %q is a directory", path)
	}
	if opts.Wait < 0 {
		opts.Wait = 0
	}

	if opts.Offset < 0 {
		lines, offset, err := readLastLines(path, opts.Limit, opts.Match)
		if err != nil {
			return result, err
		}
		result.Lines = lines
		result.Offset = offset
		if opts.Follow && opts.Wait > 0 && len(lines) == 0 {
			return waitForLines(ctx, path, offset, opts.Wait, opts.Match)
		}
		return result, nil
	}

	offset := opts.Offset
	if offset > info.Size() {
		// Rotated or truncated; start over.
		offset = 0
	}
	lines, newOffset, err := readForward(path, offset, opts.Match)
	if err != nil {
		return result, err
	}
	result.Lines = lines
	result.Offset = newOffset
	if opts.Follow && opts.Wait > 0 && len(lines) == 0 {
		return waitForLines(ctx, path, newOffset, opts.Wait, opts.Match)
	}
	return result, nil
}

// FieldMatcher matches lines carrying key=value in console format or
// "key":"value" in JSON format.
func FieldMatcher(key, value string) Matcher {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return nil
	}
	console := key + "=" + value
	quoted := key + "=" + strconv.Quote(value)
	jsonField := strconv.Quote(key) + ":" + strconv.Quote(value)
	return func(line string) bool {
		return containsField(line, console) || strings.Contains(line, quoted) || strings.Contains(line, jsonField)
	}
}

// containsField reports whether field appears as a whole space-delimited
// token, so request_id=ab does not match request_id=abc.
func containsField(line, field string) bool {
	for rest := line; ; {
		i := strings.Index(rest, field)
		if i < 0 {
			return false
		}
		end := i + len(field)
		startOK := i == 0 || rest[i-1] == ' '
		endOK := end == len(rest) || rest[end] == ' '
		if startOK && endOK {
			return true
		}
		rest = rest[i+1:]
	}
}

// All combines matchers; nil entries are skipped.
func All(matchers ...Matcher) Matcher {
	active := make([]Matcher, 0, len(matchers))
	for _, m := range matchers {
		if m != nil {
			active = append(active, m)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return func(line string) bool {
		for _, m := range active {
			if !m(line) {
				return false
			}
		}
		return true
	}
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return scanner
}

func readLastLines(path string, limit int, match Matcher) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, end, nil
	}

	ring := make([]string, limit)
	count, idx := 0, 0
	scanner := newScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if match != nil && !match(line) {
			continue
		}
		ring[idx] = line
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log offset: %w", err)
	}

	lines := make([]string, count)
	if count == limit {
		for i := range count {
			lines[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, offset, nil
}

// readForward returns complete lines after offset. A trailing partial line
// is left for the next read.
func readForward(path string, offset int64, match Matcher) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReader(file)
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		line = strings.TrimRight(line, "\r\n")
		if match == nil || match(line) {
			lines = append(lines, line)
		}
	}
	return lines, offset, nil
}

func waitForLines(ctx context.Context, path string, offset int64, wait time.Duration, match Matcher) (TailResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	result := TailResult{Offset: offset}
	for {
		lines, newOffset, err := readForward(path, offset, match)
		if err != nil {
			return result, err
		}
		// Non-matching lines still advance the offset.
		offset = newOffset
		result.Offset = newOffset
		if len(lines) > 0 {
			result.Lines = lines
			return result, nil
		}
		if time.Now().After(deadline) {
			return result, nil
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
	}
}
