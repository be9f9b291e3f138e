package model

import "time"

// Message is a persisted chat message. It is either direct (ReceiverID set) or
// room-scoped (RoomID set), never both.
type Message struct {
	ID         int64     `gorm:"primaryKey;autoIncrement:false" json:"_id,string"`
	SenderID   string    `gorm:"index;not null;type:text" json:"senderId"`
	ReceiverID string    `gorm:"index;type:text" json:"receiverId,omitempty"`
	RoomID     string    `gorm:"index;type:text" json:"roomId,omitempty"`
	Text       string    `gorm:"type:text" json:"text"`
	Image      string    `gorm:"type:text" json:"image"`
	Seen       bool      `gorm:"not null;default:false" json:"seen"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (Message) TableName() string {
	return "messages"
}

// IsDirect reports whether the message is addressed to a single receiver.
func (m *Message) IsDirect() bool {
	return m.ReceiverID != "" && m.RoomID == ""
}

// IsRoom reports whether the message is addressed to a room.
func (m *Message) IsRoom() bool {
	return m.RoomID != "" && m.ReceiverID == ""
}

// ChannelID names the conversation the message belongs to: "room:<id>" for
// room messages and "dm:<a>:<b>" with the two user ids sorted for direct
// ones, so both directions share a channel.
func (m *Message) ChannelID() string {
	if m.RoomID != "" {
		return "room:" + m.RoomID
	}
	a, b := m.SenderID, m.ReceiverID
	if b < a {
		a, b = b, a
	}
	return "dm:" + a + ":" + b
}
