package log

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu     sync.Mutex
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
)

// SetWriter redirects all module loggers. Meant to be called once at startup.
func SetWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	logger = zerolog.New(w).With().Timestamp().Logger()
}

func module(name string) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()

	return logger.With().Str("mod", name).Logger()
}

func Node() zerolog.Logger      { return module("node") }
func Intake() zerolog.Logger    { return module("intake") }
func Creator() zerolog.Logger   { return module("creator") }
func Linker() zerolog.Logger    { return module("linker") }
func Validator() zerolog.Logger { return module("validator") }
func Quorum() zerolog.Logger    { return module("quorum") }
func API() zerolog.Logger       { return module("api") }

func Info() *zerolog.Event  { return logger.Info() }
func Warn() *zerolog.Event  { return logger.Warn() }
func Error() *zerolog.Event { return logger.Error() }
func Fatal() *zerolog.Event { return logger.Fatal() }
