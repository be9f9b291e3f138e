package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mahaj/chatter-box/pkg/model"
)

// ErrInvalidMessage is returned for a message that is neither direct nor room-scoped.
var ErrInvalidMessage = errors.New("message must have exactly one of receiver or room")

// IDGenerator hands out message ids. *snowflake.Node satisfies it.
type IDGenerator interface {
	Generate() int64
}

type MessageRepository struct {
	db  *gorm.DB
	ids IDGenerator
}

func NewMessageRepository(db *gorm.DB, ids IDGenerator) *MessageRepository {
	return &MessageRepository{db: db, ids: ids}
}

// Create assigns an id and persists m.
func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	if m.IsDirect() == m.IsRoom() {
		return ErrInvalidMessage
	}
	if m.ID == 0 {
		m.ID = r.ids.Generate()
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (r *MessageRepository) FindByID(ctx context.Context, id int64) (*model.Message, error) {
	var m model.Message
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find message: %w", err)
	}
	return &m, nil
}

// Conversation returns the direct messages between a and b in insertion order.
func (r *MessageRepository) Conversation(ctx context.Context, a, b string) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("id").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return msgs, nil
}

// RoomHistory returns the messages of a room in insertion order.
func (r *MessageRepository) RoomHistory(ctx context.Context, roomID string) ([]model.Message, error) {
	var msgs []model.Message
	if err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Order("id").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("load room history: %w", err)
	}
	return msgs, nil
}

// MarkConversationSeen flags every message from sender to receiver as seen.
func (r *MessageRepository) MarkConversationSeen(ctx context.Context, senderID, receiverID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND seen = ?", senderID, receiverID, false).
		Update("seen", true)
	if res.Error != nil {
		return 0, fmt.Errorf("mark conversation seen: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// MarkSeen flags one direct message as seen. Only its receiver may do so;
// any other caller gets ErrNotFound.
func (r *MessageRepository) MarkSeen(ctx context.Context, id int64, receiverID string) error {
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ? AND receiver_id = ?", id, receiverID).
		Update("seen", true)
	if res.Error != nil {
		return fmt.Errorf("mark seen: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UnseenCounts returns, for receiverID, the number of unseen direct messages
// per sender. Senders with nothing unseen are absent.
func (r *MessageRepository) UnseenCounts(ctx context.Context, receiverID string) (map[string]int64, error) {
	var rows []struct {
		SenderID string
		Count    int64
	}
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Select("sender_id, COUNT(*) AS count").
		Where("receiver_id = ? AND seen = ?", receiverID, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count unseen: %w", err)
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.SenderID] = row.Count
	}
	return out, nil
}
