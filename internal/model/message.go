package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SessionID   string    `gorm:"size:64;not null;index" json:"session_id"`
	Role        string    `gorm:"size:16;not null" json:"role"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	ImageBase64 string    `gorm:"type:text" json:"image_base64,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Turn is one completed exchange: the user input followed by the assistant reply.
type Turn struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
}
