// Package logger provides leveled, component-tagged logging for linkvault.
//
// Components pass a short tag ("relay", "vault", "telegram") so log lines
// can be filtered per subsystem. The *F variants attach structured fields.
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var (
	mu       sync.Mutex
	minLevel = INFO
	out      io.Writer = os.Stderr
	fileSink *os.File
)

// SetLevel sets the minimum level that will be emitted.
func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = level
}

// SetOutput replaces the primary output writer. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetLogFile additionally mirrors all log lines to the given file,
// creating it if needed. Passing an empty path disables the file sink.
func SetLogFile(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if fileSink != nil {
		fileSink.Close()
		fileSink = nil
	}
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	fileSink = f
	return nil
}

func logf(level Level, component, msg string, fields map[string]any) {
	mu.Lock()
	defer mu.Unlock()
	if level < minLevel {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02 15:04:05"))
	b.WriteString(" [")
	b.WriteString(level.String())
	b.WriteString("]")
	if component != "" {
		b.WriteString(" [")
		b.WriteString(component)
		b.WriteString("]")
	}
	b.WriteString(" ")
	b.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	b.WriteString("\n")

	line := b.String()
	fmt.Fprint(out, line)
	if fileSink != nil {
		fmt.Fprint(fileSink, line)
	}
}

func DebugC(component, msg string) { logf(DEBUG, component, msg, nil) }
func InfoC(component, msg string)  { logf(INFO, component, msg, nil) }
func WarnC(component, msg string)  { logf(WARN, component, msg, nil) }
func ErrorC(component, msg string) { logf(ERROR, component, msg, nil) }

func DebugCF(component, msg string, fields map[string]any) { logf(DEBUG, component, msg, fields) }
func InfoCF(component, msg string, fields map[string]any)  { logf(INFO, component, msg, fields) }
func WarnCF(component, msg string, fields map[string]any)  { logf(WARN, component, msg, fields) }
func ErrorCF(component, msg string, fields map[string]any) { logf(ERROR, component, msg, fields) }
