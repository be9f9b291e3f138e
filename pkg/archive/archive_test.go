package archive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mahaj/chatter-box/pkg/events"
	"github.com/mahaj/chatter-box/pkg/model"
)

func TestPlan_Direct(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := &model.Message{ID: 7, SenderID: "bob", ReceiverID: "alice", Text: "yo", CreatedAt: at}

	stmts := Plan(msg)
	require.Len(t, stmts, 4)

	assert.Equal(t, insertMessage, stmts[0].Query)
	assert.Equal(t, []any{"dm:alice:bob", int64(7), "bob", "alice", "", "yo", "", at}, stmts[0].Args)

	assert.Equal(t, []any{"bob", "alice", at}, stmts[1].Args)
	assert.Equal(t, []any{"alice", "bob", at}, stmts[2].Args)

	assert.Equal(t, bumpUnread, stmts[3].Query)
	assert.Equal(t, []any{"alice", "bob"}, stmts[3].Args, "receiver has one more unread from sender")
}

func TestPlan_Room(t *testing.T) {
	stmts := Plan(&model.Message{ID: 8, SenderID: "bob", RoomID: "r1", Image: "http://x/img.png"})
	require.Len(t, stmts, 1)
	assert.Equal(t, "room:r1", stmts[0].Args[0])
	assert.Equal(t, "http://x/img.png", stmts[0].Args[6])
}

func TestKeyspaceDDL(t *testing.T) {
	ddl, err := KeyspaceDDL("chat")
	require.NoError(t, err)
	assert.Contains(t, ddl, "CREATE KEYSPACE IF NOT EXISTS chat ")

	for _, bad := range []string{"", "1chat", "chat; DROP", "a-b"} {
		_, err := KeyspaceDDL(bad)
		assert.Error(t, err, bad)
	}
}

type flakyWriter struct {
	mu       sync.Mutex
	failures int
	got      []*model.Message
}

func (w *flakyWriter) Archive(_ context.Context, msg *model.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failures > 0 {
		w.failures--
		return errors.New("scylla unavailable")
	}
	w.got = append(w.got, msg)
	return nil
}

func TestConsumer_HandleRetriesUntilArchived(t *testing.T) {
	w := &flakyWriter{failures: 2}
	c := &Consumer{writer: w, log: zap.NewNop(), retry: time.Millisecond}

	record, err := events.Encode(&model.Message{ID: 3, SenderID: "a", ReceiverID: "b"})
	require.NoError(t, err)

	require.NoError(t, c.handle(context.Background(), record))
	require.Len(t, w.got, 1)
	assert.Equal(t, int64(3), w.got[0].ID)
}

func TestConsumer_HandleSkipsUndecodable(t *testing.T) {
	w := &flakyWriter{}
	c := &Consumer{writer: w, log: zap.NewNop(), retry: time.Millisecond}

	require.NoError(t, c.handle(context.Background(), kafka.Message{Value: []byte("nope")}))
	assert.Empty(t, w.got)
}

func TestConsumer_HandleStopsOnCancel(t *testing.T) {
	w := &flakyWriter{failures: 1 << 30}
	c := &Consumer{writer: w, log: zap.NewNop(), retry: time.Hour}

	record, err := events.Encode(&model.Message{ID: 3, SenderID: "a", RoomID: "r"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.handle(ctx, record), context.Canceled)
}
