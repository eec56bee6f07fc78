package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammadpnp/roster-onboarding/internal/logging"
)

func TestLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, logrus.PanicLevel, logging.Level("silent"))
	assert.Equal(t, logrus.WarnLevel, logging.Level("WARN"))
	assert.Equal(t, logrus.DebugLevel, logging.Level("debug"))
	assert.Equal(t, logrus.ErrorLevel, logging.Level("chatty"))
}

func TestNewJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logging.New("info", "json", &buf)
	log.WithField("session_id", "s-1").Info("hello")
	log.Debug("dropped")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "s-1", entry["session_id"])
}
