package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"zeus-insurance/internal/model"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *model.Order) error {
	if err := r.db.WithContext(ctx).Omit("Quotation").Create(order).Error; err != nil {
		return fmt.Errorf("create order failed: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *OrderRepository) GetByQuotationID(ctx context.Context, quotationID string) (*model.Order, error) {
	return r.first(ctx, "quotation_id = ?", quotationID)
}

// GetByOrderNumber returns the order with its quotation loaded.
func (r *OrderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	return r.first(ctx, "order_number = ?", orderNumber)
}

func (r *OrderRepository) first(ctx context.Context, query string, args ...any) (*model.Order, error) {
	var order model.Order
	if err := r.db.WithContext(ctx).Preload("Quotation").Where(query, args...).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order failed: %w", err)
	}
	return &order, nil
}

// NumberExists checks order_number or policy_number for an existing value.
func (r *OrderRepository) NumberExists(ctx context.Context, column, number string) (bool, error) {
	switch column {
	case "order_number", "policy_number":
	default:
		return false, fmt.Errorf("check order number failed: unknown column %q", column)
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where(column+" = ?", number).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check order number failed: %w", err)
	}
	return count > 0, nil
}

func (r *OrderRepository) UpdatePayment(ctx context.Context, id string, updates map[string]any) error {
	if err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("update order payment failed: %w", err)
	}
	return nil
}
