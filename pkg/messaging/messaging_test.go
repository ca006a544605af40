package messaging_test

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hluk/resultsdb/pkg/config"
	"github.com/hluk/resultsdb/pkg/messaging"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func TestNew_Disabled(t *testing.T) {
	publisher, err := messaging.New(testLogger(),
		&config.MessagingConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, publisher)
}

func TestNew_Plugins(t *testing.T) {
	log := testLogger()

	publisher, err := messaging.New(log,
		&config.MessagingConfig{Enabled: true, Plugin: "log"})
	require.NoError(t, err)
	assert.IsType(t, &messaging.LogPublisher{}, publisher)

	publisher, err = messaging.New(log,
		&config.MessagingConfig{Enabled: true, Plugin: "dummy"})
	require.NoError(t, err)
	assert.IsType(t, &messaging.Recorder{}, publisher)

	_, err = messaging.New(log,
		&config.MessagingConfig{Enabled: true, Plugin: "stomp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown messaging plugin")
}

func TestRecorder(t *testing.T) {
	recorder := messaging.NewRecorder()
	ctx := context.Background()

	require.NoError(t, recorder.Publish(ctx, &messaging.ResultMessage{
		ID:      1,
		Outcome: "PASSED",
	}))
	require.NoError(t, recorder.Publish(ctx, &messaging.ResultMessage{
		ID:      2,
		Outcome: "FAILED",
	}))

	history := recorder.History()
	require.Len(t, history, 2)
	assert.Equal(t, uint(1), history[0].ID)
	assert.Equal(t, "FAILED", history[1].Outcome)

	// History returns a snapshot, not the live slice.
	history[0] = nil
	assert.NotNil(t, recorder.History()[0])
}

func TestLogPublisher(t *testing.T) {
	publisher := messaging.NewLogPublisher(testLogger())

	require.NoError(t, publisher.Publish(context.Background(),
		&messaging.ResultMessage{ID: 7, Outcome: "PASSED"}))
}
