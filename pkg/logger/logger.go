package logger

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

// Init initializes the global logger with the specified level.
// level can be: "debug", "info", "warn", "error", "fatal"
// At debug level output is human-friendly console format.
func Init(level string) {
	InitWithWriter(level, nil)
}

// InitWithWriter is Init with an explicit sink; nil picks stdout.
func InitWithWriter(level string, w io.Writer) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	writer := w
	if writer == nil {
		if lvl == zerolog.DebugLevel {
			writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		} else {
			writer = os.Stdout
		}
	}

	log = zerolog.New(writer).
		Level(lvl).
		With().
		Timestamp().
		Caller().
		Logger()
}

func init() {
	Init("info")
}

func Debug() *zerolog.Event { return log.Debug() }
func Info() *zerolog.Event  { return log.Info() }
func Warn() *zerolog.Event  { return log.Warn() }
func Error() *zerolog.Event { return log.Error() }

func Infof(format string, v ...interface{}) {
	log.Info().Msgf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	log.Error().Msgf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	log.Warn().Msgf(format, v...)
}

// Fatalf logs at fatal level and exits.
func Fatalf(format string, v ...interface{}) {
	log.Fatal().Msgf(format, v...)
}

// Get returns the underlying zerolog.Logger.
// Component returns a child logger tagged with a component name,
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// GinLogger logs each request. The caller identity set by the auth
// middleware is included when present.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		if status >= 500 {
			event = log.Error()
		} else if status >= 400 {
			event = log.Warn()
		}

		if role, ok := c.Get("role"); ok {
			event = event.Interface("role", role)
		}
		if uid, ok := c.Get("user_id"); ok {
			event = event.Interface("user_id", uid)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}

		event.
			Int("status", status).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Str("ip", c.ClientIP()).
			Dur("latency", time.Since(start)).
			Int("size", c.Writer.Size()).
			Msg("request")
	}
}

// GinRecovery turns panics into a logged 500 with the usual {error} body.
func GinRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error().
			Interface("panic", recovered).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("ip", c.ClientIP()).
			Msg("panic recovered")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}
