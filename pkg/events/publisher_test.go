package events

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahaj/chatter-box/pkg/model"
)

func TestEncodeDecode(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := &model.Message{ID: 42, SenderID: "b", ReceiverID: "a", Text: "hi", CreatedAt: created}

	record, err := Encode(msg)
	require.NoError(t, err)
	assert.Equal(t, "dm:a:b", string(record.Key))
	assert.Equal(t, created, record.Time)

	got, err := Decode(record)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, "hi", got.Text)
	assert.True(t, got.IsDirect())
}

func TestEncode_RoomKey(t *testing.T) {
	record, err := Encode(&model.Message{ID: 1, SenderID: "a", RoomID: "r9"})
	require.NoError(t, err)
	assert.Equal(t, "room:r9", string(record.Key))
}

func TestDecode_Rejects(t *testing.T) {
	_, err := Decode(kafka.Message{Value: []byte("{")})
	assert.Error(t, err)

	_, err = Decode(kafka.Message{Value: []byte(`{"_id":"1","senderId":"a"}`)})
	assert.Error(t, err)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), &model.Message{}))
	assert.NoError(t, p.Close())
}
