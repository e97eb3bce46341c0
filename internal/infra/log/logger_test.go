package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSetupWritesFileLog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Setup(dir))
	t.Cleanup(func() { Logger = zap.NewNop() })

	LogInfo("cycle finished", zap.String("wallet", "W1"))
	LogDebug("debug goes to file too")
	LogError("delivery failed", zap.Int64("duration_ms", 12))
	Sync()

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "INFO cycle finished\t{\"wallet\":\"W1\"}")
	assert.Contains(t, text, "DEBUG debug goes to file too")
	assert.Contains(t, text, "ERROR delivery failed")
}

func TestRequestLoggerCarriesContext(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Setup(dir))
	t.Cleanup(func() { Logger = zap.NewNop() })

	logger := RequestLogger("req-1", "solana-rpc")
	LogResponse(logger, "solana-rpc", 200, 7)
	LogResponse(logger, "solana-rpc", 503, 9)
	LogJSON(logger, "HTTP response body", []byte(`{"ok":true}`))
	LogJSON(logger, "HTTP response body", []byte(`not json`))
	Sync()

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `INFO HTTP response	{"duration_ms":7,"endpoint":"solana-rpc","request_id":"req-1","status_code":200}`)
	assert.Contains(t, text, `ERROR HTTP response	{"duration_ms":9,"endpoint":"solana-rpc","request_id":"req-1","status_code":503}`)
	assert.Contains(t, text, "DEBUG HTTP response body\n{\n  \"ok\": true\n}")
	assert.Contains(t, text, `"body":"not json"`)
}

func TestLogJSONSkippedWithoutDebug(t *testing.T) {
	// The Nop logger has no enabled level; LogJSON must not touch the payload.
	assert.NotPanics(t, func() { LogJSON(zap.NewNop(), "body", nil) })
}

func TestExtractDuration(t *testing.T) {
	assert.Equal(t, int64(250), extractDuration([]zap.Field{zap.String("a", "b"), zap.Int64("duration_ms", 250)}))
	assert.Equal(t, int64(0), extractDuration([]zap.Field{zap.String("duration_ms", "5")}))
}

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}
