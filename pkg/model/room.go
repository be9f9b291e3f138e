package model

import "time"

// Room is a named group chat. Members is loaded from room_members.
type Room struct {
	ID        string    `gorm:"primaryKey;type:text" json:"_id"`
	Name      string    `gorm:"uniqueIndex;not null;type:text" json:"name"`
	Members   []string  `gorm:"-" json:"members"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Room) TableName() string {
	return "rooms"
}

// HasMember reports whether userID is in the loaded member list.
func (r *Room) HasMember(userID string) bool {
	for _, m := range r.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// RoomMember is one (room, user) membership row.
type RoomMember struct {
	RoomID   string    `gorm:"primaryKey;type:text"`
	UserID   string    `gorm:"primaryKey;type:text;index"`
	JoinedAt time.Time `gorm:"autoCreateTime"`
}

func (RoomMember) TableName() string {
	return "room_members"
}
