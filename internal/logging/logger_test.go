package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStampsServiceField(t *testing.T) {
	logger := New("feed-agent", "debug")
	buffer := &bytes.Buffer{}
	logger.SetOutput(buffer)

	logger.WithField("thread_id", "t-1").Info("turn completed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &entry))
	assert.Equal(t, "feed-agent", entry["service"])
	assert.Equal(t, "t-1", entry["thread_id"])
	assert.Equal(t, "turn completed", entry["msg"])
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	assert.Equal(t, logrus.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("loud"))
	assert.Equal(t, logrus.InfoLevel, ParseLevel(""))
}
