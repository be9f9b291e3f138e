package model

import "time"

// User is a registered account.
type User struct {
	ID           string    `gorm:"primaryKey;type:text" json:"_id"`
	FullName     string    `gorm:"not null;type:text" json:"fullName"`
	Email        string    `gorm:"uniqueIndex;not null;type:text" json:"email"`
	PasswordHash string    `gorm:"not null;type:text" json:"-"`
	ProfilePic   string    `gorm:"type:text" json:"profilePic"`
	Bio          string    `gorm:"type:text" json:"bio"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}
