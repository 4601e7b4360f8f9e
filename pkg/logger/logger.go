// Package logger holds the process-wide zerolog logger.
//
// Call Init once from main; packages that are handed a logger explicitly
// should prefer that over Get.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options controls how the root logger is built.
type Options struct {
	// Level is one of trace, debug, info, warn, error. Anything else means info.
	Level string
	// Pretty switches to zerolog's console writer for local development.
	Pretty bool
	// Output defaults to os.Stdout.
	Output io.Writer
	// Service is attached to every entry as "service".
	Service string
}

var (
	mu   sync.Mutex
	root *zerolog.Logger
)

// Init builds the root logger. Only the first call has any effect until Reset.
func Init(opts Options) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if root != nil {
		return *root
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl := parseLevel(opts.Level)
	zerolog.SetGlobalLevel(lvl)

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	c := zerolog.New(out).Level(lvl).With().Timestamp()
	if opts.Service != "" {
		c = c.Str("service", opts.Service)
	}
	l := c.Logger()
	root = &l
	return l
}

// Get returns the root logger and panics if Init has not run.
func Get() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if root == nil {
		panic("logger: Get() called before Init()")
	}
	return *root
}

// Component returns a child logger tagged with "component".
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// Reset drops the root logger. Tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	root = nil
}

// MaskEmail keeps the first character of the local part and the domain,
// e.g. "a***@example.com". Used wherever an address shares a log line with a
// token or link.
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel || lvl > zerolog.ErrorLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
