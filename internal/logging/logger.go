package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Level is the severity attached to each log line
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// sink is shared by a root Logger and every child derived from it
type sink struct {
	mu   sync.Mutex
	std  *log.Logger
	file *os.File
}

// Logger writes one line per event to a log file and the console.
// Create it once per command with New and Close it before exit.
type Logger struct {
	sink      *sink
	component string
	runID     string
}

// New opens (or appends to) the log file at path and mirrors every line to console.
// An empty path logs to console only.
func New(path string, console io.Writer, runID string) (*Logger, error) {
	s := &sink{}

	writers := make([]io.Writer, 0, 2)
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
			}
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		s.file = f
		writers = append(writers, f)
	}
	if console != nil {
		writers = append(writers, console)
	}

	s.std = log.New(io.MultiWriter(writers...), "", log.LstdFlags)
	return &Logger{sink: s, runID: runID}, nil
}

// Discard returns a logger that drops everything (for tests)
func Discard() *Logger {
	return &Logger{sink: &sink{std: log.New(io.Discard, "", 0)}}
}

// Component returns a child logger whose lines carry a [name] tag
func (l *Logger) Component(name string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{sink: l.sink, component: name, runID: l.runID}
}

// RunID returns the id stamped on this logger's lines
func (l *Logger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

func (l *Logger) Infof(format string, args ...any)  { l.output(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.output(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.output(LevelError, format, args...) }

func (l *Logger) output(level Level, format string, args ...any) {
	if l == nil || l.sink == nil {
		return
	}

	msg := fmt.Sprintf(format, args...)
	line := level.String()
	if l.runID != "" {
		line += " run=" + l.runID
	}
	if l.component != "" {
		line += " [" + l.component + "]"
	}
	line += " " + msg

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.std.Output(3, line)
}

// Close flushes and closes the log file. Children share the file, so only the
// root logger should be closed.
func (l *Logger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if l.sink.file == nil {
		return nil
	}
	err := l.sink.file.Close()
	l.sink.file = nil
	l.sink.std.SetOutput(io.Discard)
	return err
}
