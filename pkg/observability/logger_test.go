package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/platinummonkey/warden/pkg/contextkeys"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("debug", &buf)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("incident_id", "inc-1").Info("incident created")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "incident created", entry["msg"])
	assert.Equal(t, "inc-1", entry["incident_id"])
}

func TestNewLoggerUnknownLevel(t *testing.T) {
	log := NewLogger("verbose", nil)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger("info", &buf)

	ctx := contextkeys.WithRequestID(context.Background(), "req-123")
	ctx = contextkeys.WithUserID(ctx, "user-9")

	FromContext(ctx, base).Info("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "user-9", entry["user_id"])

	assert.Equal(t, logrus.FieldLogger(base), FromContext(context.Background(), base))
}

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("info", &buf)

	func() {
		defer RecoverPanic(log, "test worker")
		panic("boom")
	}()

	assert.Contains(t, buf.String(), "PANIC recovered")
	assert.Contains(t, buf.String(), "test worker")
}
