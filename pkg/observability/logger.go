package observability

import (
	"context"
	"io"
	"os"

	"github.com/platinummonkey/warden/pkg/contextkeys"
	"github.com/sirupsen/logrus"
)

// NewLogger creates a JSON logger at the given level ("debug", "info", "warn", "error").
// Unknown levels fall back to info.
func NewLogger(level string, output io.Writer) *logrus.Logger {
	if output == nil {
		output = os.Stdout
	}

	logger := logrus.New()
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	return logger
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// FromContext returns base enriched with the request id and user id stored in ctx
func FromContext(ctx context.Context, base logrus.FieldLogger) logrus.FieldLogger {
	fields := logrus.Fields{}
	if id := contextkeys.GetRequestID(ctx); id != "" {
		fields["request_id"] = id
	}
	if uid := contextkeys.GetUserID(ctx); uid != "" {
		fields["user_id"] = uid
	}
	if len(fields) == 0 {
		return base
	}
	return base.WithFields(fields)
}
