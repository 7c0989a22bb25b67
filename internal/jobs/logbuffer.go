package jobs

import (
	"strings"
	"sync"
)

// MaxLogLines is how many output lines a job keeps.
const MaxLogLines = 100

// LogBuffer keeps the most recent lines written to it.
type LogBuffer struct {
	mu       sync.Mutex
	lines    []string
	maxLines int
}

func NewLogBuffer(max int) *LogBuffer {
	if max <= 0 {
		max = MaxLogLines
	}
	return &LogBuffer{
		lines:    make([]string, 0, max),
		maxLines: max,
	}
}

// Write appends text, one entry per non-blank line.
func (l *LogBuffer) Write(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range strings.Split(text, "\n") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if len(l.lines) >= l.maxLines {
			l.lines = l.lines[1:]
		}
		l.lines = append(l.lines, p)
	}
}

// Lines returns a copy of the kept lines, oldest first.
func (l *LogBuffer) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

func (l *LogBuffer) String() string {
	return strings.Join(l.Lines(), "\n")
}

func (l *LogBuffer) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}
