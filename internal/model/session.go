package model

import "time"

// ChatSession is created on the first message of a conversation and only
// grows by appending messages.
type ChatSession struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
