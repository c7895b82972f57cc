package telemetry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsanders-rh/sentinel/internal/config"
	"github.com/tsanders-rh/sentinel/internal/telemetry"
)

func TestInitTracer(t *testing.T) {
	t.Run("none returns a no-op shutdown", func(t *testing.T) {
		shutdown, err := telemetry.InitTracer("sentinel-test", &config.Config{OTELExporterType: "none"})
		require.NoError(t, err)
		require.NotNil(t, shutdown)
		shutdown()
	})

	t.Run("stdout exporter", func(t *testing.T) {
		shutdown, err := telemetry.InitTracer("sentinel-test", &config.Config{OTELExporterType: "stdout"})
		require.NoError(t, err)
		shutdown()
	})

	t.Run("unknown exporter type fails", func(t *testing.T) {
		_, err := telemetry.InitTracer("sentinel-test", &config.Config{OTELExporterType: "zipkin"})
		assert.Error(t, err)
	})
}
