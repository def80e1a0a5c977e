package model

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

const (
	QuotationStatusDraft    = "draft"
	QuotationStatusAccepted = "accepted"
	QuotationStatusExpired  = "expired"

	QuotationValidity = 30 * 24 * time.Hour
)

type Quotation struct {
	ID                string    `gorm:"primaryKey;size:26" json:"id"`
	SessionID         string    `gorm:"size:64;not null;index" json:"session_id"`
	CarModelID        uint      `gorm:"not null" json:"car_model_id"`
	PlanID            uint      `gorm:"not null" json:"plan_id"`
	CustomerName      *string   `gorm:"size:128" json:"customer_name"`
	CustomerEmail     *string   `gorm:"size:128" json:"customer_email"`
	CustomerPhone     *string   `gorm:"size:32" json:"customer_phone"`
	CarEstimatedPrice float64   `json:"car_estimated_price"`
	BasePremium       float64   `json:"base_premium"`
	Deductible        float64   `json:"deductible"`
	TotalPremium      float64   `json:"total_premium"`
	QuotationNumber   string    `gorm:"size:32;not null;uniqueIndex" json:"quotation_number"`
	ValidUntil        time.Time `gorm:"not null" json:"valid_until"`
	Status            string    `gorm:"size:16;not null" json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (q *Quotation) BeforeCreate(*gorm.DB) error {
	if q.ID == "" {
		q.ID = ulid.Make().String()
	}
	return nil
}

// EffectiveStatus reports expired once now reaches ValidUntil; nothing writes
// the expired status back.
func (q *Quotation) EffectiveStatus(now time.Time) string {
	if q.Status == QuotationStatusExpired || !now.Before(q.ValidUntil) {
		return QuotationStatusExpired
	}
	return q.Status
}

func (q *Quotation) IsUsable(now time.Time) bool {
	return q.EffectiveStatus(now) != QuotationStatusExpired
}
