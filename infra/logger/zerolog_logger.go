package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger writes to stdout. APP_ENV=dev switches to the coloured
// console format and LOG_LEVEL sets the minimum level.
func NewZerologLogger(component string) Logger {
	return NewZerologLoggerTo(os.Stdout, component)
}

// NewZerologLoggerTo is NewZerologLogger with an explicit destination.
func NewZerologLoggerTo(w io.Writer, component string) *ZerologLogger {
	if strings.EqualFold(os.Getenv("APP_ENV"), "dev") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	z := zerolog.New(w).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z.Level(levelFromEnv())}
}

func levelFromEnv() zerolog.Level {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if raw == "warning" {
		raw = "warn"
	}
	lvl, err := zerolog.ParseLevel(raw)
	if raw == "" || err != nil {
		return zerolog.DebugLevel
	}
	return lvl
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	l.log.Debug().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
