package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"zeus-insurance/internal/model"
)

type QuotationRepository struct {
	db *gorm.DB
}

func NewQuotationRepository(db *gorm.DB) *QuotationRepository {
	return &QuotationRepository{db: db}
}

func (r *QuotationRepository) Create(ctx context.Context, quotation *model.Quotation) error {
	if err := r.db.WithContext(ctx).Create(quotation).Error; err != nil {
		return fmt.Errorf("create quotation failed: %w", err)
	}
	return nil
}

func (r *QuotationRepository) GetByID(ctx context.Context, id string) (*model.Quotation, error) {
	var quotation model.Quotation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&quotation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get quotation failed: %w", err)
	}
	return &quotation, nil
}

func (r *QuotationRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.Quotation{}).
		Where("quotation_number = ?", number).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check quotation number failed: %w", err)
	}
	return count > 0, nil
}

func (r *QuotationRepository) UpdateStatus(ctx context.Context, id, status string) error {
	if err := r.db.WithContext(ctx).
		Model(&model.Quotation{}).
		Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("update quotation status failed: %w", err)
	}
	return nil
}
