package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"zeus-insurance/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Ensure creates the session row if it does not exist yet.
func (r *SessionRepository) Ensure(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	session := model.ChatSession{ID: sessionID}
	if err := r.db.WithContext(ctx).Where("id = ?", sessionID).FirstOrCreate(&session).Error; err != nil {
		return nil, fmt.Errorf("ensure session failed: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	var session model.ChatSession
	if err := r.db.WithContext(ctx).Where("id = ?", sessionID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	return &session, nil
}
