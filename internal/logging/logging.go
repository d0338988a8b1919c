package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
)

const (
	levelInfo  = "INFO"
	levelWarn  = "WARN"
	levelDebug = "DEBUG"
)

// Reports own stdout, so the console side of every log line is stderr.
var (
	verbose atomic.Bool

	mu       sync.Mutex
	console  io.Writer = os.Stderr
	file     *os.File
	filePath string

	warnLabel = color.New(color.FgYellow, color.Bold)
	now       = time.Now
)

// SetVerbose enables or disables debug logging for the current process.
func SetVerbose(enabled bool) {
	verbose.Store(enabled)
}

// Verbose reports whether debug logging is enabled.
func Verbose() bool {
	return verbose.Load()
}

// SetConsole redirects console output and returns the previous writer.
func SetConsole(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := console
	console = w
	return prev
}

// SetOutputFile additionally appends every log line, timestamped and
// tagged with its level, to path. An empty path disables file logging.
func SetOutputFile(path string) error {
	path = strings.TrimSpace(path)

	mu.Lock()
	defer mu.Unlock()

	if path == filePath {
		return nil
	}
	if err := closeFile(); err != nil {
		return err
	}
	if path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	file = f
	filePath = path
	return nil
}

// Close closes the log file if one is configured.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	return closeFile()
}

// closeFile requires mu.
func closeFile() error {
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	filePath = ""
	return err
}

func emit(level, msg string) {
	mu.Lock()
	defer mu.Unlock()

	if level == levelWarn {
		warnLabel.Fprint(console, "Warning: ")
	}
	io.WriteString(console, msg)

	if file == nil {
		return
	}
	stamp := now().Format(time.RFC3339)
	for line := range strings.Lines(msg) {
		fmt.Fprintf(file, "%s %-5s %s", stamp, level, line)
		if !strings.HasSuffix(line, "\n") {
			io.WriteString(file, "\n")
		}
	}
}

// Infof prints formatted output regardless of verbosity level.
func Infof(format string, args ...any) {
	emit(levelInfo, fmt.Sprintf(format, args...))
}

// Infoln prints output regardless of verbosity level.
func Infoln(args ...any) {
	emit(levelInfo, fmt.Sprintln(args...))
}

func Warnf(format string, args ...any) {
	emit(levelWarn, fmt.Sprintf(format, args...))
}

// Debugf prints formatted output only when verbose mode is enabled.
func Debugf(format string, args ...any) {
	if !Verbose() {
		return
	}
	emit(levelDebug, fmt.Sprintf(format, args...))
}
