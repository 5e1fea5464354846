package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/incident"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// stallingStore blocks reads until the caller's context ends
type stallingStore struct {
	incident.Store
}

func (stallingStore) Get(ctx context.Context, _ string) (*incident.Incident, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStoreTimeoutBoundsStoreCalls(t *testing.T) {
	svc := NewIncidentService(stallingStore{Store: memory.New().Incidents()}, Deps{StoreTimeout: 20 * time.Millisecond})
	user := &auth.User{ID: "u-1", Role: auth.RoleAnalyst}

	start := time.Now()
	_, err := svc.Get(context.Background(), user, "01HZX", meta)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInternal))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestServiceSpansUseWardenTracer(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	otel.SetTracerProvider(tp)

	svc := NewIncidentService(memory.New().Incidents(), Deps{})
	_, err := svc.Get(context.Background(), &auth.User{ID: "u-1", Role: auth.RoleAnalyst}, "missing", meta)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))

	spans := recorder.Ended()
	require.NotEmpty(t, spans)
	assert.Equal(t, "IncidentService.Get", spans[0].Name())
	assert.Equal(t, observability.TracerName, spans[0].InstrumentationScope().Name)
}
