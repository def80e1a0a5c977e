package model

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

const (
	PaymentStatusPending              = "pending"
	PaymentStatusAwaitingConfirmation = "awaiting_confirmation"
	PaymentStatusPaid                 = "paid"
	PaymentStatusFailed               = "failed"
	PaymentStatusRefunded             = "refunded"

	PolicyStatusInactive = "inactive"
	PolicyStatusActive   = "active"

	PaymentMethodPending      = "pending"
	PaymentMethodCreditCard   = "credit_card"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodPromptPay    = "promptpay"

	PolicyTerm = 365 * 24 * time.Hour
	DateLayout = "2006-01-02"
)

var (
	PaymentStatuses = []string{
		PaymentStatusPending,
		PaymentStatusAwaitingConfirmation,
		PaymentStatusPaid,
		PaymentStatusFailed,
		PaymentStatusRefunded,
	}
	PaymentMethods = []string{
		PaymentMethodPending,
		PaymentMethodCreditCard,
		PaymentMethodBankTransfer,
		PaymentMethodPromptPay,
	}
)

// Order is the purchase of exactly one quotation.
type Order struct {
	ID              string     `gorm:"primaryKey;size:26" json:"id"`
	QuotationID     string     `gorm:"size:26;not null;uniqueIndex" json:"quotation_id"`
	OrderNumber     string     `gorm:"size:32;not null;uniqueIndex" json:"order_number"`
	PolicyNumber    string     `gorm:"size:32;not null;uniqueIndex" json:"policy_number"`
	PaymentStatus   string     `gorm:"size:32;not null" json:"payment_status"`
	PaymentMethod   string     `gorm:"size:32;not null" json:"payment_method"`
	PaymentDate     *time.Time `json:"payment_date"`
	PolicyStartDate string     `gorm:"size:10;not null" json:"policy_start_date"`
	PolicyEndDate   string     `gorm:"size:10;not null" json:"policy_end_date"`
	PolicyStatus    string     `gorm:"size:16;not null" json:"policy_status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Quotation *Quotation `gorm:"foreignKey:QuotationID" json:"quotation,omitempty"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == "" {
		o.ID = ulid.Make().String()
	}
	return nil
}
