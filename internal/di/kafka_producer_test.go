package di

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func newTestProducer(w *fakeWriter) *KafkaProducer {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &KafkaProducer{writer: w, topic: "appointment_notifications", Logger: logger}
}

func TestKafkaProducer_Dispatch(t *testing.T) {
	w := &fakeWriter{}
	kp := newTestProducer(w)
	old := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	moved := old.Add(time.Hour)
	intent := domain.NotificationIntent{
		Kind:          domain.NotifyRescheduled,
		RecipientID:   "u-drx",
		AppointmentID: uuid.New(),
		OldInstant:    &old,
		NewInstant:    &moved,
		OccurredAt:    old.Add(-48 * time.Hour),
	}

	require.NoError(t, kp.Dispatch(context.Background(), intent))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, intent.AppointmentID.String(), string(msg.Key))
	assert.Equal(t, "kind", msg.Headers[0].Key)
	assert.Equal(t, "RESCHEDULED", string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "RESCHEDULED", decoded["kind"])
	assert.Equal(t, "u-drx", decoded["recipient_id"])
	assert.Equal(t, "2026-03-02T10:00:00Z", decoded["old_instant"])
	assert.Equal(t, "2026-03-02T11:00:00Z", decoded["new_instant"])

	require.NoError(t, kp.Close())
	assert.True(t, w.closed)
}

func TestKafkaProducer_OmitsAbsentInstants(t *testing.T) {
	w := &fakeWriter{}
	kp := newTestProducer(w)

	require.NoError(t, kp.Dispatch(context.Background(), domain.NotificationIntent{
		Kind:          domain.NotifyConfirmed,
		RecipientID:   "p-1",
		AppointmentID: uuid.New(),
	}))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.NotContains(t, decoded, "old_instant")
	assert.NotContains(t, decoded, "new_instant")
}

func TestKafkaProducer_WriteFailure(t *testing.T) {
	broker := errors.New("kafka: leader not available")
	kp := newTestProducer(&fakeWriter{err: broker})

	err := kp.Dispatch(context.Background(), domain.NotificationIntent{Kind: domain.NotifyPending, AppointmentID: uuid.New()})
	require.Error(t, err)
	assert.ErrorIs(t, err, broker)
	assert.Contains(t, err.Error(), "failed to produce message")
}
