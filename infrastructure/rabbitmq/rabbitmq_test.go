package rabbitmq

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublishing(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	msg, err := newPublishing(map[string]any{"type": "created", "tagId": "t1"}, "01h", now)
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "01h", msg.MessageId)
	assert.Equal(t, now, msg.Timestamp)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "t1", decoded["tagId"])

	_, err = newPublishing(make(chan int), "x", now)
	assert.Error(t, err)
}

func TestSettle(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		redelivered bool
		ack         bool
		requeue     bool
	}{
		{name: "成功", ack: true},
		{name: "临时错误首次", err: errors.New("timeout"), requeue: true},
		{name: "临时错误重投", err: errors.New("timeout"), redelivered: true},
		{name: "永久错误", err: Permanent(errors.New("bad json"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack, requeue := settle(tt.err, tt.redelivered)
			assert.Equal(t, tt.ack, ack)
			assert.Equal(t, tt.requeue, requeue)
		})
	}
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	cause := errors.New("cause")
	err := Permanent(cause)
	assert.ErrorIs(t, err, ErrPermanent)
	assert.ErrorIs(t, err, cause)
}
