package logger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a log entry.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string onto a Level. Unknown values fall back to info.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// DefaultMaxLines caps the log file size. Once exceeded, the oldest half is dropped.
const DefaultMaxLines = 5000

// File is the storage a FileLogger writes to. *os.File satisfies it.
type File interface {
	io.ReadWriteSeeker
	Truncate(size int64) error
	Close() error
}

// FileLogger writes leveled, timestamped lines to a file and keeps the file
// below maxLines lines.
type FileLogger struct {
	mu        sync.Mutex
	file      File
	level     Level
	lineCount int
	maxLines  int
	now       func() time.Time
}

var (
	globalMu sync.RWMutex
	global   *FileLogger
	fallback = &FileLogger{file: nopFile{os.Stderr}, level: LevelInfo, maxLines: 0, now: time.Now}
)

// New creates a FileLogger, counts the lines already present in f, and
// installs it as the package-level logger.
func New(f File, level Level) *FileLogger {
	l := &FileLogger{
		file:     f,
		level:    level,
		maxLines: DefaultMaxLines,
		now:      time.Now,
	}
	l.lineCount = l.countLines()

	globalMu.Lock()
	global = l
	globalMu.Unlock()
	return l
}

func current() *FileLogger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if global != nil {
		return global
	}
	return fallback
}

// SetMaxLines changes the rotation threshold. Zero disables rotation.
func (l *FileLogger) SetMaxLines(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxLines = n
}

func (l *FileLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *FileLogger) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetLevel changes the level of the package-level logger.
func SetLevel(level Level) {
	current().SetLevel(level)
}

func (l *FileLogger) enabled(level Level) bool {
	return level >= l.Level()
}

func (l *FileLogger) logf(level Level, format string, v ...any) {
	if !l.enabled(level) {
		return
	}
	line := fmt.Sprintf("%s [%s] %s\n", l.now().Format("2006/01/02 15:04:05"), level, fmt.Sprintf(format, v...))
	_, _ = l.Write([]byte(line))
}

func (l *FileLogger) Debug(format string, v ...any) { l.logf(LevelDebug, format, v...) }
func (l *FileLogger) Info(format string, v ...any) { l.logf(LevelInfo, format, v...) }
func (l *FileLogger) Warn(format string, v ...any) { l.logf(LevelWarn, format, v...) }
func (l *FileLogger) Error(format string, v ...any) { l.logf(LevelError, format, v...) }

func Debug(format string, v ...any) { current().Debug(format, v...) }
func Info(format string, v ...any) { current().Info(format, v...) }
func Warn(format string, v ...any) { current().Warn(format, v...) }
func Error(format string, v ...any) { current().Error(format, v...) }

var noop = func() {}

// Trace logs how long an operation took when the returned func is called.
//
//	defer logger.Trace("engine.finish")()
func Trace(name string) func() {
	l := current()
	if !l.enabled(LevelTrace) {
		return noop
	}
	start := time.Now()
	return func() {
		l.logf(LevelTrace, "%s: %v", name, time.Since(start))
	}
}

// Write implements io.Writer so the standard log package can be redirected here.
func (l *FileLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.file.Write(p)
	if err != nil {
		return n, err
	}
	l.lineCount += strings.Count(string(p), "\n")
	if l.maxLines > 0 && l.lineCount > l.maxLines {
		l.rotate()
	}
	return n, nil
}

func (l *FileLogger) countLines() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return 0
	}
	count := 0
	scanner := bufio.NewScanner(l.file)
	for scanner.Scan() {
		count++
	}
	_, _ = l.file.Seek(0, io.SeekEnd)
	return count
}

// rotate keeps the newest maxLines/2 lines. Caller holds mu.
func (l *FileLogger) rotate() {
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return
	}
	var lines []string
	scanner := bufio.NewScanner(l.file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	keep := l.maxLines / 2
	if len(lines) > keep {
		lines = lines[len(lines)-keep:]
	}

	if err := l.file.Truncate(0); err != nil {
		return
	}
	_, _ = l.file.Seek(0, io.SeekStart)
	w := bufio.NewWriter(l.file)
	for _, line := range lines {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	_ = w.Flush()
	l.lineCount = len(lines)
}

func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// nopFile adapts stderr for the fallback logger; it never rotates.
type nopFile struct{ w io.Writer }

func (f nopFile) Read([]byte) (int, error) { return 0, io.EOF }
func (f nopFile) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f nopFile) Seek(int64, int) (int64, error) { return 0, nil }
func (f nopFile) Truncate(int64) error { return nil }
func (f nopFile) Close() error { return nil }
