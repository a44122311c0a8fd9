package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerJSON(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("LOG_LEVEL", "info")
	var buf bytes.Buffer
	l := NewZerologLoggerTo(&buf, "engine")

	l.Debugf("hidden %d", 1)
	l.Infof("mission %s started", "m-1")
	l.Warnf("dock %s empty", "dock-2")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "engine", rec["component"])
	assert.Equal(t, "info", rec["level"])
	assert.Equal(t, "mission m-1 started", rec["message"])
}

func TestZerologLoggerDebugwFields(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("LOG_LEVEL", "debug")
	var buf bytes.Buffer
	NewZerologLoggerTo(&buf, "engine").Debugw("tick", map[string]any{"drones": 3, "mission": "m-1"})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.EqualValues(t, 3, rec["drones"])
	assert.Equal(t, "m-1", rec["mission"])
}

func TestZerologLoggerDevConsole(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	var buf bytes.Buffer
	l := NewZerologLoggerTo(&buf, "fleet")
	l.Errorf("error")
	if json.Valid(buf.Bytes()) {
		t.Fatalf("expected console output, got JSON %q", buf.String())
	}
	assert.Contains(t, buf.String(), "error")
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, zerolog.WarnLevel, levelFromEnv())
	t.Setenv("LOG_LEVEL", "WARNING")
	assert.Equal(t, zerolog.WarnLevel, levelFromEnv())
	t.Setenv("LOG_LEVEL", "bogus")
	assert.Equal(t, zerolog.DebugLevel, levelFromEnv())
	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, zerolog.DebugLevel, levelFromEnv())
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l.Debugw("ignored", nil)
	l.Errorf("ignored")
}
