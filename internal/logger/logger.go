// Package logger writes single-line JSON log records to a shared file.
//
// Each record is rendered into a private buffer and emitted with exactly one
// Write call while holding the logger's mutex, so concurrent callers never
// interleave partial records.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Level is the severity of a log record.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

// timestampFormat is ISO-8601 UTC with millisecond precision.
const timestampFormat = "2006-01-02T15:04:05.000Z"

// DefaultDebugEnv is the environment variable that enables DEBUG records.
const DefaultDebugEnv = "DEBUG"

// record fields are declared in output order.
type record struct {
	Level    Level  `json:"loglevel"`
	Datetime string `json:"ibm_datetime"`
	PID      string `json:"ibm_processId"`
	Module   string `json:"module"`
	Message  string `json:"message"`
}

// Logger is a process-wide JSON-line writer. The zero value is not usable;
// create one with New. All methods are safe to call on a nil *Logger.
type Logger struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer

	debug    atomic.Bool
	debugEnv string
	pid      string
	now      func() time.Time
}

// New creates a logger with no output attached. Records written before
// Init or InitWriter are dropped.
func New() *Logger {
	return &Logger{
		debugEnv: DefaultDebugEnv,
		pid:      strconv.Itoa(os.Getpid()),
		now:      time.Now,
	}
}

// SetDebugEnv changes the environment variable consulted by Init.
func (l *Logger) SetDebugEnv(name string) {
	if l == nil || name == "" {
		return
	}
	l.mu.Lock()
	l.debugEnv = name
	l.mu.Unlock()
}

// Init opens path for appending, creating it if needed. Calling Init while a
// target is already attached keeps the existing target and only re-reads
// the debug flag. On failure the logger stays disabled and the error is
// returned for the caller to report.
func (l *Logger) Init(path string) error {
	return l.open(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND)
}

// InitReset is Init but truncates the file first.
func (l *Logger) InitReset(path string) error {
	return l.open(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_TRUNC)
}

func (l *Logger) open(path string, flag int) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refreshDebugLocked()
	if l.w != nil {
		return nil
	}

	// #nosec G304 -- path comes from operator configuration
	f, err := os.OpenFile(filepath.Clean(path), flag, 0o640)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", path, err)
	}
	l.w = f
	l.closer = f
	return nil
}

// InitWriter attaches an existing writer in place of any current target. A
// file opened by Init is closed; w itself is never closed by the logger.
func (l *Logger) InitWriter(w io.Writer) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refreshDebugLocked()
	if l.closer != nil {
		_ = l.closer.Close()
	}
	l.w = w
	l.closer = nil
}

func (l *Logger) refreshDebugLocked() {
	v := os.Getenv(l.debugEnv)
	l.debug.Store(v == "true" || v == "1")
}

// DebugEnabled reports whether DEBUG records are written.
func (l *Logger) DebugEnabled() bool {
	return l != nil && l.debug.Load()
}

// Close releases the target. Later writes are dropped.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var err error
	if l.closer != nil {
		err = l.closer.Close()
	}
	l.w = nil
	l.closer = nil
	return err
}

// Write renders one record and emits it with a single Write call.
func (l *Logger) Write(level Level, sourceFile string, sourceLine int, message string) {
	if l == nil {
		return
	}
	if level == LevelDebug && !l.debug.Load() {
		return
	}

	buf, err := json.Marshal(record{
		Level:    level,
		Datetime: l.now().UTC().Format(timestampFormat),
		PID:      l.pid,
		Module:   sourceFile + ":" + strconv.Itoa(sourceLine),
		Message:  message,
	})
	if err != nil {
		return
	}
	buf = append(buf, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return
	}
	_, _ = l.w.Write(buf)
}

func (l *Logger) logf(level Level, format string, args ...any) {
	if l == nil {
		return
	}
	if level == LevelDebug && !l.debug.Load() {
		return
	}
	file, line := "???", 0
	if _, f, n, ok := runtime.Caller(2); ok {
		file, line = filepath.Base(f), n
	}
	l.Write(level, file, line, fmt.Sprintf(format, args...))
}

// Debugf writes a DEBUG record if debugging is enabled.
func (l *Logger) Debugf(format string, args ...any) {
	l.logf(LevelDebug, format, args...)
}

// Infof writes an INFO record.
func (l *Logger) Infof(format string, args ...any) {
	l.logf(LevelInfo, format, args...)
}

// Errorf writes an ERROR record.
func (l *Logger) Errorf(format string, args ...any) {
	l.logf(LevelError, format, args...)
}
