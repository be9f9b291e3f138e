package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/mahaj/chatter-box/pkg/model"
)

const defaultHistoryLimit = 100

// Conversation is one entry of a user's archived conversation list.
type Conversation struct {
	UserID      string    `json:"userId"`
	OtherUserID string    `json:"otherUserId"`
	LastUpdated time.Time `json:"lastUpdated"`
	UnreadCount int64     `json:"unreadCount"`
}

// Reader serves archived history and conversation lists.
type Reader struct {
	session *gocql.Session
}

func NewReader(session *gocql.Session) *Reader {
	return &Reader{session: session}
}

// History returns up to limit messages of channelID, newest first.
func (r *Reader) History(ctx context.Context, channelID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	iter := r.session.Query(
		`SELECT id, sender_id, receiver_id, room_id, text, image, created_at FROM messages WHERE channel_id = ? LIMIT ?`,
		channelID, limit,
	).WithContext(ctx).Iter()

	var (
		msgs []model.Message
		m    model.Message
	)
	for iter.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.RoomID, &m.Text, &m.Image, &m.CreatedAt) {
		m.UpdatedAt = m.CreatedAt
		msgs = append(msgs, m)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("read history %s: %w", channelID, err)
	}
	return msgs, nil
}

// Conversations lists the users userID has exchanged direct messages with,
// each with its unread counter.
func (r *Reader) Conversations(ctx context.Context, userID string) ([]Conversation, error) {
	iter := r.session.Query(
		`SELECT user_id, other_user_id, last_updated FROM user_conversations WHERE user_id = ?`, userID,
	).WithContext(ctx).Iter()

	var (
		convs []Conversation
		c     Conversation
	)
	for iter.Scan(&c.UserID, &c.OtherUserID, &c.LastUpdated) {
		convs = append(convs, c)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("read conversations of %s: %w", userID, err)
	}

	for i := range convs {
		var count int64
		err := r.session.Query(
			`SELECT unread_count FROM conversation_counters WHERE user_id = ? AND other_user_id = ?`,
			convs[i].UserID, convs[i].OtherUserID,
		).WithContext(ctx).Scan(&count)
		switch {
		case err == nil:
			convs[i].UnreadCount = count
		case errors.Is(err, gocql.ErrNotFound):
		default:
			return nil, fmt.Errorf("read unread count: %w", err)
		}
	}
	return convs, nil
}

// ResetUnread clears the unread counter of userID for otherUserID. Counters
// cannot be set, so the row is deleted.
func (r *Reader) ResetUnread(ctx context.Context, userID, otherUserID string) error {
	err := r.session.Query(
		`DELETE FROM conversation_counters WHERE user_id = ? AND other_user_id = ?`, userID, otherUserID,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("reset unread count: %w", err)
	}
	return nil
}
