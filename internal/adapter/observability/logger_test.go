package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/mainalyze/internal/config"
)

func TestLogger_DevLogsDebugWithServiceFields(t *testing.T) {
	var buf bytes.Buffer
	lg := newLogger(&buf, config.Config{AppEnv: "dev", OTELServiceName: "mainalyze"})
	lg.Debug("probe")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "mainalyze", rec["service"])
	assert.Equal(t, "dev", rec["env"])
	assert.Equal(t, "probe", rec["msg"])
}

func TestLogger_ProdSkipsDebug(t *testing.T) {
	var buf bytes.Buffer
	lg := newLogger(&buf, config.Config{AppEnv: "prod", OTELServiceName: "mainalyze"})
	lg.Debug("hidden")
	assert.Zero(t, buf.Len())
	assert.True(t, lg.Enabled(context.Background(), slog.LevelInfo))
	assert.NotNil(t, SetupLogger(config.Config{AppEnv: "prod"}))
}
