package telemetry

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetupDisabledInstallsPropagatorOnly(t *testing.T) {
	var out bytes.Buffer
	shutdown, err := Setup(context.Background(), config.TracingConfig{ServiceName: "kycengine", MetricInterval: time.Minute}, &out)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	assert.ElementsMatch(t, []string{"traceparent", "tracestate", "baggage"}, otel.GetTextMapPropagator().Fields())
	assert.Empty(t, out.String())
}

func TestSetupExportsSpans(t *testing.T) {
	var out bytes.Buffer
	shutdown, err := Setup(context.Background(), config.TracingConfig{
		Enabled:        true,
		ServiceName:    "kycengine-test",
		MetricInterval: time.Minute,
	}, &out)
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry_test").Start(context.Background(), "onboarding.Onboard")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, out.String(), `"Name":"onboarding.Onboard"`)
	assert.Contains(t, out.String(), "kycengine-test")
}
