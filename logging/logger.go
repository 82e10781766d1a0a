// Package logging provides the levelled logger shared by the wallet's
// long-running components, backed by zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

const (
	colorRed    = 31
	colorGreen  = 32
	colorYellow = 33
	colorBlue   = 34
	colorWhite  = 37
)

// Logger is the logging surface handed to components.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	// With returns a logger tagged with a sub-component name.
	With(component string) Logger
	// Level returns the active level name.
	Level() string
}

type options struct {
	writer io.Writer
	level  string
	pretty bool
}

// Option configures New.
type Option func(*options)

// WithWriter sends output to w instead of stdout.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// WithLevel sets the minimum level (debug, info, warn, error).
func WithLevel(level string) Option {
	return func(o *options) { o.level = level }
}

// WithJSON disables the console formatter and emits one JSON object per line.
func WithJSON() Option {
	return func(o *options) { o.pretty = false }
}

// ZLogger wraps a zerolog.Logger.
type ZLogger struct {
	zerolog.Logger
	service string
	opts    options
}

// New creates a logger for service.
func New(service string, opts ...Option) *ZLogger {
	o := options{writer: os.Stdout, level: "info", pretty: true}
	for _, opt := range opts {
		opt(&o)
	}
	if service == "" {
		service = "wallet"
	}

	var base zerolog.Logger
	if o.pretty {
		base = zerolog.New(consoleWriter(o.writer, service))
	} else {
		base = zerolog.New(o.writer).With().Str("service", service).Logger()
	}

	z := &ZLogger{
		Logger:  base.With().Timestamp().Logger().Level(ParseLevel(o.level)),
		service: service,
		opts:    o,
	}
	return z
}

// Nop returns a logger that discards everything.
func Nop() *ZLogger {
	return &ZLogger{Logger: zerolog.Nop(), service: "nop", opts: options{writer: io.Discard, level: "disabled"}}
}

// ParseLevel maps a configuration level name to a zerolog level; unknown
// names fall back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "DISABLED":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func consoleWriter(w io.Writer, service string) zerolog.ConsoleWriter {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !term.IsTerminal(int(f.Fd()))
	}

	output := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    noColor,
		TimeFormat: time.RFC3339,
	}

	output.FormatTimestamp = func(i interface{}) string {
		s, _ := i.(string)
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return s
		}
		return parsed.Format("15:04:05")
	}

	output.FormatLevel = func(i interface{}) string {
		l := strings.ToUpper(fmt.Sprintf("%-6s", i))
		switch i {
		case "debug":
			l = colorize(l, colorBlue, noColor)
		case "info":
			l = colorize(l, colorGreen, noColor)
		case "warn":
			l = colorize(l, colorYellow, noColor)
		case "error", "fatal", "panic":
			l = colorize(l, colorRed, noColor)
		default:
			l = colorize(l, colorWhite, noColor)
		}
		return fmt.Sprintf("| %s|", l)
	}

	output.FormatMessage = func(i interface{}) string {
		return fmt.Sprintf("| %-8s| %s", service, i)
	}

	output.FormatFieldName = func(i interface{}) string {
		return fmt.Sprintf("%s:", i)
	}

	return output
}

func colorize(s interface{}, c int, disabled bool) string {
	if disabled {
		return fmt.Sprintf("%s", s)
	}
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

// With returns a child logger whose messages carry the component name.
func (z *ZLogger) With(component string) Logger {
	return &ZLogger{
		Logger:  z.Logger.With().Str("component", component).Logger(),
		service: z.service,
		opts:    z.opts,
	}
}

// Level returns the active level name.
func (z *ZLogger) Level() string {
	return z.Logger.GetLevel().String()
}

func (z *ZLogger) Debugf(format string, args ...interface{}) {
	z.Logger.Debug().Msgf(format, args...)
}

func (z *ZLogger) Infof(format string, args ...interface{}) {
	z.Logger.Info().Msgf(format, args...)
}

func (z *ZLogger) Warnf(format string, args ...interface{}) {
	z.Logger.Warn().Msgf(format, args...)
}

func (z *ZLogger) Errorf(format string, args ...interface{}) {
	z.Logger.Error().Msgf(format, args...)
}
