// Package debug provides conditional diagnostic logging for retro.
//
// Logging is enabled by setting the RETRO_DEBUG environment variable:
//
//	RETRO_DEBUG=1 retro --board sprint-42
//
// Because the terminal is owned by the board UI, output goes to the file named
// by RETRO_DEBUG_FILE when set, and to stderr otherwise. When disabled (the
// default) every function is a no-op.
//
// Warnings are different: they describe recovered failures (a refresh that
// did not reach the server, a focus restore that threw) and are always kept
// in a small in-memory ring so the UI can show the latest one, even when
// debug output itself is off.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

const warningRingSize = 32

var (
	mu       sync.Mutex
	enabled  bool
	logger   *log.Logger
	warnings []string
)

func init() {
	if os.Getenv("RETRO_DEBUG") != "" {
		SetEnabled(true)
	}
}

func newLogger() *log.Logger {
	var out io.Writer = os.Stderr
	if path := os.Getenv("RETRO_DEBUG_FILE"); path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			out = f
		}
	}
	return log.New(out, "[RETRO] ", log.Ltime|log.Lmicroseconds)
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = e
	if e && logger == nil {
		logger = newLogger()
	}
}

// SetOutput redirects debug output. Used by tests and by the CLI when the
// user passes --debug-log.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, "[RETRO] ", log.Ltime|log.Lmicroseconds)
}

// Log writes a debug message if debug logging is enabled.
func Log(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}
	logger.Printf(format, args...)
}

// LogTiming writes a timing message if debug logging is enabled.
func LogTiming(name string, d time.Duration) {
	Log("%s took %v", name, d)
}

// LogIf writes a debug message only if the condition is true.
func LogIf(cond bool, format string, args ...any) {
	if !cond {
		return
	}
	Log(format, args...)
}

// LogEnterExit logs function entry and exit with timing.
//
//	defer debug.LogEnterExit("Refresh")()
func LogEnterExit(name string) func() {
	if !Enabled() {
		return func() {}
	}
	Log("-> %s", name)
	start := time.Now()
	return func() {
		Log("<- %s (%v)", name, time.Since(start))
	}
}

// Warn records a recovered failure and logs it when debug output is on.
func Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	mu.Lock()
	warnings = append(warnings, msg)
	if len(warnings) > warningRingSize {
		warnings = warnings[len(warnings)-warningRingSize:]
	}
	on := enabled
	l := logger
	mu.Unlock()
	if on {
		l.Printf("WARN %s", msg)
	}
}

// LastWarning returns the most recent warning, or "" if none was recorded.
func LastWarning() string {
	mu.Lock()
	defer mu.Unlock()
	if len(warnings) == 0 {
		return ""
	}
	return warnings[len(warnings)-1]
}

// Warnings returns a copy of the recorded warnings, oldest first.
func Warnings() []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, len(warnings))
	copy(out, warnings)
	return out
}

// ResetWarnings clears the warning ring.
func ResetWarnings() {
	mu.Lock()
	defer mu.Unlock()
	warnings = nil
}
