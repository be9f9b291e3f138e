// Package archive copies persisted messages from the event stream into the
// ScyllaDB history tables.
package archive

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"

	"github.com/mahaj/chatter-box/pkg/model"
)

// Statement is one CQL write with its bound values.
type Statement struct {
	Query string
	Args  []any
}

const (
	insertMessage = `INSERT INTO messages (channel_id, id, sender_id, receiver_id, room_id, text, image, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	touchConv     = `INSERT INTO user_conversations (user_id, other_user_id, last_updated) VALUES (?, ?, ?)`
	bumpUnread    = `UPDATE conversation_counters SET unread_count = unread_count + 1 WHERE user_id = ? AND other_user_id = ?`
)

// Plan returns the writes that archive msg. Every message lands in the
// messages table under its channel; a direct message also refreshes both
// participants' conversation lists and bumps the receiver's unread counter.
func Plan(msg *model.Message) []Statement {
	stmts := []Statement{{
		Query: insertMessage,
		Args: []any{
			msg.ChannelID(), msg.ID, msg.SenderID, msg.ReceiverID,
			msg.RoomID, msg.Text, msg.Image, msg.CreatedAt,
		},
	}}
	if !msg.IsDirect() {
		return stmts
	}
	return append(stmts,
		Statement{Query: touchConv, Args: []any{msg.SenderID, msg.ReceiverID, msg.CreatedAt}},
		Statement{Query: touchConv, Args: []any{msg.ReceiverID, msg.SenderID, msg.CreatedAt}},
		Statement{Query: bumpUnread, Args: []any{msg.ReceiverID, msg.SenderID}},
	)
}

// Archiver executes archive plans against a Scylla session.
type Archiver struct {
	session *gocql.Session
}

func NewArchiver(session *gocql.Session) *Archiver {
	return &Archiver{session: session}
}

func (a *Archiver) Archive(ctx context.Context, msg *model.Message) error {
	for _, stmt := range Plan(msg) {
		if err := a.session.Query(stmt.Query, stmt.Args...).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("archive message %d: %w", msg.ID, err)
		}
	}
	return nil
}
