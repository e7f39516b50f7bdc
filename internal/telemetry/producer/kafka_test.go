package producer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server-actions/backend/internal/telemetry"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed int
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("write without deadline")
	}
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed++
	return nil
}

func TestNewKafkaProducer_Disabled(t *testing.T) {
	p, err := NewKafkaProducer(nil, "topic")
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = NewKafkaProducer([]string{"localhost:9092"}, "")
	require.NoError(t, err)
	assert.Nil(t, p)

	// A nil producer is usable.
	assert.NoError(t, p.Emit(context.Background(), &telemetry.Event{}))
	assert.NoError(t, p.Close())
}

func TestNewKafkaProducer_Configured(t *testing.T) {
	p, err := NewKafkaProducer([]string{"localhost:9092"}, "serveractions.telemetry")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "serveractions.telemetry", p.topic)
	assert.NoError(t, p.Close())
}

func TestKafkaProducer_Emit_KeyedJSON(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, topic: "t"}
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	err := p.Emit(context.Background(), &telemetry.Event{
		ID: "e1", EventType: telemetry.EventTypeInvocation, Action: "post.create",
		Code: "OK", UserID: "user-1", CreatedAt: created,
	})

	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("user-1"), w.msgs[0].Key)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "e1", decoded["id"])
	assert.Equal(t, "post.create", decoded["action"])
	assert.Equal(t, "2026-01-02T03:04:05Z", decoded["created_at"])
}

func TestKafkaProducer_Emit_AnonymousUnkeyed(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, topic: "t"}

	require.NoError(t, p.Emit(context.Background(), &telemetry.Event{ID: "e1"}))
	require.NoError(t, p.Emit(context.Background(), nil))

	require.Len(t, w.msgs, 1)
	assert.Nil(t, w.msgs[0].Key)
}

func TestKafkaProducer_Emit_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := &KafkaProducer{writer: w, topic: "t"}

	err := p.Emit(context.Background(), &telemetry.Event{ID: "e1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
	assert.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)
}
