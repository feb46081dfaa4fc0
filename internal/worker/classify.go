package worker

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

type marker struct {
	token string
	level slog.Level
}

// Python logging emits [WARNING] and [CRITICAL]; the worker itself uses [WARN].
var stderrMarkers = []marker{
	{"[DEBUG]", slog.LevelDebug},
	{"[INFO]", slog.LevelInfo},
	{"[WARNING]", slog.LevelWarn},
	{"[WARN]", slog.LevelWarn},
	{"[ERROR]", slog.LevelError},
	{"[CRITICAL]", slog.LevelError},
}

// classifyLine picks the level named by the earliest marker in line and
// returns the line with that marker removed. Lines without a marker pass
// through at info.
func classifyLine(line string) (slog.Level, string) {
	best := -1
	var found marker
	for _, m := range stderrMarkers {
		idx := strings.Index(line, m.token)
		if idx < 0 {
			continue
		}
		if best < 0 || idx < best {
			best = idx
			found = m
		}
	}
	if best < 0 {
		return slog.LevelInfo, strings.TrimSpace(line)
	}
	text := line[:best] + line[best+len(found.token):]
	return found.level, strings.TrimSpace(text)
}

const stderrTailLines = 64

// outputCapture accumulates stdout verbatim and routes stderr lines to the
// logger while keeping a bounded tail for diagnostics.
type outputCapture struct {
	ctx    context.Context
	logger *slog.Logger

	mu     sync.Mutex
	stdout strings.Builder
	tail   []string
	lines  int
}

func newOutputCapture(ctx context.Context, logger *slog.Logger) *outputCapture {
	return &outputCapture{ctx: ctx, logger: logger}
}

func (c *outputCapture) onStdout(line string) {
	c.mu.Lock()
	c.stdout.WriteString(line)
	c.stdout.WriteByte('\n')
	c.mu.Unlock()
}

func (c *outputCapture) onStderr(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	c.mu.Lock()
	c.lines++
	if len(c.tail) == stderrTailLines {
		copy(c.tail, c.tail[1:])
		c.tail = c.tail[:stderrTailLines-1]
	}
	c.tail = append(c.tail, line)
	c.mu.Unlock()

	if c.logger == nil {
		return
	}
	level, text := classifyLine(line)
	c.logger.Log(c.ctx, level, text)
}

func (c *outputCapture) stdoutText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stdout.String()
}

func (c *outputCapture) stderrTail() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.tail, "\n")
}

func (c *outputCapture) stderrLines() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines
}
