// Package logx is the process logger: standard log lines tagged with a
// [Component] prefix, written to stderr or to a size-rotated file.
package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the log destination. An empty File logs to stderr.
type Options struct {
	File       string
	MaxSizeMB  int
	MaxAgeDays int
}

var (
	mu     sync.RWMutex
	logger = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds)
)

// Init points the logger at the configured destination. The returned
// closer flushes and closes the log file; it is a no-op for stderr.
func Init(opts Options) io.Closer {
	if opts.File == "" {
		SetOutput(os.Stderr)
		return nopCloser{}
	}
	lj := &lumberjack.Logger{
		Filename: opts.File,
		MaxSize:  opts.MaxSizeMB,
		MaxAge:   opts.MaxAgeDays,
	}
	SetOutput(lj)
	return lj
}

// SetOutput redirects every subsequent log line to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

func Info(component, format string, args ...any) {
	write(component, "", format, args...)
}

func Warn(component, format string, args ...any) {
	write(component, "WARN: ", format, args...)
}

func Error(component, format string, args ...any) {
	write(component, "ERROR: ", format, args...)
}

func write(component, level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	logger.Printf("[%s] %s%s", component, level, fmt.Sprintf(format, args...))
}

// Printer writes Print calls as Info lines of one component. It satisfies
// chi's middleware.LoggerInterface, so request logs share the destination.
type Printer struct {
	component string
}

func For(component string) Printer {
	return Printer{component: component}
}

func (p Printer) Print(v ...any) {
	write(p.component, "", "%s", fmt.Sprint(v...))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
