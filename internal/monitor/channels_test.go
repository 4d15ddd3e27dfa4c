package monitor

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t77yq/resource-governor/internal/model"
	"github.com/t77yq/resource-governor/internal/testutil"
)

func TestJetStreamChannel_Send(t *testing.T) {
	_, js, cleanup := testutil.StartJetStream(t)
	defer cleanup()

	channel, err := NewJetStreamChannel(js)
	require.NoError(t, err)

	alert := &model.Alert{
		ID:       "alert-1",
		Kind:     model.AlertKindPressure,
		Severity: model.AlertSeverityError,
		Title:    "Resource pressure CRITICAL",
		Message:  "pressure CRITICAL: cpu 91.0%, memory 88.0%, 2 active executors",
	}
	require.NoError(t, channel.Send(alert))

	messages, err := testutil.ConsumeMessages(js, "alert.error", 2*time.Second)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	var received model.Alert
	require.NoError(t, json.Unmarshal(messages[0], &received))
	assert.Equal(t, "alert-1", received.ID)
	assert.Equal(t, model.AlertSeverityError, received.Severity)
	assert.Equal(t, model.AlertKindPressure, received.Kind)
}

func TestJetStreamChannel_ReusesExistingStream(t *testing.T) {
	_, js, cleanup := testutil.StartJetStream(t)
	defer cleanup()

	_, err := NewJetStreamChannel(js)
	require.NoError(t, err)

	// Second construction must not fail on the existing ALERTS stream
	_, err = NewJetStreamChannel(js)
	require.NoError(t, err)
}
