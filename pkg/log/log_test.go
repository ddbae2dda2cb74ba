package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]interface{}{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestToLogLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ToLogLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ToLogLevel("warning"))
	assert.Equal(t, LevelError, ToLogLevel(" error "))
	assert.Equal(t, LevelInfo, ToLogLevel("info"))
	assert.Equal(t, LevelInfo, ToLogLevel("nonsense"))
}

func TestZerologProviderFields(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProviderWithWriter(&buf, LevelDebug)

	logger := p.GetLoggerWithName("demand").With(ModelNameKey, "GradientBoostingRegressor")
	logger.Info("Training completed", SamplesKey, 80, DurationMsKey, int64(12))
	logger.Error("Training failed", ErrorKey, errors.New("boom"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "demand", lines[0][ComponentKey])
	assert.Equal(t, "GradientBoostingRegressor", lines[0][ModelNameKey])
	assert.Equal(t, "Training completed", lines[0]["message"])
	assert.EqualValues(t, 80, lines[0][SamplesKey])
	assert.Equal(t, "boom", lines[1][ErrorKey])
	assert.Equal(t, "error", lines[1]["level"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProviderWithWriter(&buf, LevelWarn)
	logger := p.GetLoggerWithName("x")

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["message"])
}

func TestOddKeyValues(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProviderWithWriter(&buf, LevelInfo)
	p.GetLoggerWithName("x").Info("odd", "dangling")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "dangling", lines[0]["!BADKEY"])
}

func TestGlobalProvider(t *testing.T) {
	var buf bytes.Buffer
	SetProvider(NewZerologProviderWithWriter(&buf, LevelInfo))
	t.Cleanup(func() { SetupLogger("info") })

	LogError(errors.New("catalog missing"), "Load failed", PathKey, "clean.csv")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "catalog missing", lines[0][ErrorKey])
	assert.Equal(t, "clean.csv", lines[0][PathKey])
	assert.Equal(t, "marketlens", lines[0][ComponentKey])
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("nothing")
	assert.NotNil(t, l.With("a", 1))
}
