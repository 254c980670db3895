package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := newWithOutput("debug", "json", &buf)

	log.WithField("vehicle_id", "truck-1").Info("evaluated")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "evaluated", entry["msg"])
	assert.Equal(t, "truck-1", entry["vehicle_id"])
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}

func TestNew_TextAndBadLevel(t *testing.T) {
	var buf bytes.Buffer
	log := newWithOutput("loud", "text", &buf)

	log.Debug("hidden")
	log.Warn("shown")

	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
