package runner

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// LineWriter logs process output one line at a time.
// Partial lines are buffered until the newline arrives or Flush is called.
type LineWriter struct {
	logger *zap.SugaredLogger
	level  string

	mu  sync.Mutex
	buf strings.Builder
}

// NewLineWriter creates a writer logging at level ("info", "warn" or "error")
func NewLineWriter(log *zap.SugaredLogger, level string) *LineWriter {
	return &LineWriter{logger: log, level: level}
}

func (l *LineWriter) Write(p []byte) (n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf.Write(p)
	for {
		line, rest, found := strings.Cut(l.buf.String(), "\n")
		if !found {
			break
		}
		l.buf.Reset()
		l.buf.WriteString(rest)
		l.emit(line)
	}
	return len(p), nil
}

// Flush logs any trailing partial line
func (l *LineWriter) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.buf.Len() > 0 {
		l.emit(l.buf.String())
		l.buf.Reset()
	}
}

func (l *LineWriter) emit(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	switch l.level {
	case "error":
		l.logger.Errorw("Tool output", "message", line)
	case "warn":
		l.logger.Warnw("Tool output", "message", line)
	default:
		l.logger.Infow("Tool output", "message", line)
	}
}
