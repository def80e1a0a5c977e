package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"zeus-insurance/internal/model"
	"zeus-insurance/internal/repository"
)

var paymentTransitions = map[string][]string{
	model.PaymentStatusPending:              {model.PaymentStatusAwaitingConfirmation, model.PaymentStatusPaid, model.PaymentStatusFailed},
	model.PaymentStatusAwaitingConfirmation: {model.PaymentStatusPaid, model.PaymentStatusFailed, model.PaymentStatusPending},
	model.PaymentStatusFailed:               {model.PaymentStatusAwaitingConfirmation, model.PaymentStatusPaid},
	model.PaymentStatusPaid:                 {model.PaymentStatusRefunded},
	model.PaymentStatusRefunded:             {},
}

type OrderView struct {
	OrderID             string     `json:"order_id"`
	OrderNumber         string     `json:"order_number"`
	QuotationNumber     string     `json:"quotation_number"`
	CustomerName        *string    `json:"customer_name"`
	CustomerEmail       *string    `json:"customer_email"`
	CustomerPhone       *string    `json:"customer_phone"`
	TotalAmount         float64    `json:"total_amount"`
	PaymentStatus       string     `json:"payment_status"`
	PaymentMethod       string     `json:"payment_method"`
	PaymentInstructions string     `json:"payment_instructions,omitempty"`
	PaymentDate         *time.Time `json:"payment_date"`
	PolicyNumber        string     `json:"policy_number"`
	PolicyStartDate     string     `json:"policy_start_date"`
	PolicyEndDate       string     `json:"policy_end_date"`
	PolicyStatus        string     `json:"policy_status"`
	CreatedAt           time.Time  `json:"created_at"`
}

type OrderResult struct {
	Order    *model.Order
	Existing bool
	View     *OrderView
}

type UpdatePaymentInput struct {
	OrderID       string
	PaymentStatus string
	PaymentDate   string
}

type OrderService struct {
	quotationRepo *repository.QuotationRepository
	orderRepo     *repository.OrderRepository
	now           func() time.Time
}

func NewOrderService(quotationRepo *repository.QuotationRepository, orderRepo *repository.OrderRepository) *OrderService {
	return &OrderService{
		quotationRepo: quotationRepo,
		orderRepo:     orderRepo,
		now:           time.Now,
	}
}

// CreateOrder converts a usable quotation into its single order. A second
// call for the same quotation returns the stored order with Existing set.
func (s *OrderService) CreateOrder(ctx context.Context, quotationID, paymentMethod string) (*OrderResult, error) {
	quotationID = strings.TrimSpace(quotationID)
	if quotationID == "" {
		return nil, fmt.Errorf("%w: quotation_id is required", ErrInvalidInput)
	}

	quotation, err := s.quotationRepo.GetByID(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	if quotation == nil {
		return nil, ErrQuotationNotFound
	}

	now := s.now()
	if !quotation.IsUsable(now) {
		return nil, fmt.Errorf("%w on %s", ErrQuotationExpired, quotation.ValidUntil.Format(model.DateLayout))
	}

	existing, err := s.orderRepo.GetByQuotationID(ctx, quotation.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.existingResult(existing, quotation), nil
	}

	method := strings.ToLower(strings.TrimSpace(paymentMethod))
	if method == "" {
		method = model.PaymentMethodPending
	}
	paymentStatus := model.PaymentStatusAwaitingConfirmation
	if method == model.PaymentMethodPending {
		paymentStatus = model.PaymentStatusPending
	}

	orderNumber, err := allocateReference(ctx, "ORD", now, func(ctx context.Context, n string) (bool, error) {
		return s.orderRepo.NumberExists(ctx, "order_number", n)
	})
	if err != nil {
		return nil, err
	}
	policyNumber, err := allocateReference(ctx, "POL", now, func(ctx context.Context, n string) (bool, error) {
		return s.orderRepo.NumberExists(ctx, "policy_number", n)
	})
	if err != nil {
		return nil, err
	}

	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	order := &model.Order{
		QuotationID:     quotation.ID,
		OrderNumber:     orderNumber,
		PolicyNumber:    policyNumber,
		PaymentStatus:   paymentStatus,
		PaymentMethod:   method,
		PolicyStartDate: start.Format(model.DateLayout),
		PolicyEndDate:   start.AddDate(0, 0, 365).Format(model.DateLayout),
		PolicyStatus:    model.PolicyStatusInactive,
		CreatedAt:       now,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		// A concurrent request may have won the unique quotation index.
		if raced, getErr := s.orderRepo.GetByQuotationID(ctx, quotation.ID); getErr == nil && raced != nil {
			return s.existingResult(raced, quotation), nil
		}
		return nil, err
	}

	if err := s.quotationRepo.UpdateStatus(ctx, quotation.ID, model.QuotationStatusAccepted); err != nil {
		return nil, err
	}
	quotation.Status = model.QuotationStatusAccepted

	view := newOrderView(order, quotation)
	view.PaymentInstructions = PaymentInstructions(method, quotation.TotalPremium, order.OrderNumber)
	return &OrderResult{Order: order, View: view}, nil
}

func (s *OrderService) existingResult(order *model.Order, quotation *model.Quotation) *OrderResult {
	return &OrderResult{Order: order, Existing: true, View: newOrderView(order, quotation)}
}

func (s *OrderService) UpdateOrderPayment(ctx context.Context, input UpdatePaymentInput) (*OrderResult, error) {
	orderID := strings.TrimSpace(input.OrderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order_id is required", ErrInvalidInput)
	}
	status := strings.ToLower(strings.TrimSpace(input.PaymentStatus))
	if _, ok := paymentTransitions[status]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, input.PaymentStatus)
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !canTransition(order.PaymentStatus, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidPaymentTransition, order.PaymentStatus, status)
	}

	updates := map[string]any{"payment_status": status}
	switch {
	case strings.TrimSpace(input.PaymentDate) != "":
		paidAt, err := parsePaymentDate(input.PaymentDate)
		if err != nil {
			return nil, err
		}
		updates["payment_date"] = paidAt
	case status == model.PaymentStatusPaid:
		updates["payment_date"] = s.now()
	}
	if status == model.PaymentStatusPaid {
		updates["policy_status"] = model.PolicyStatusActive
	}

	if err := s.orderRepo.UpdatePayment(ctx, order.ID, updates); err != nil {
		return nil, err
	}
	updated, err := s.orderRepo.GetByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrOrderNotFound
	}
	return &OrderResult{Order: updated, View: newOrderView(updated, updated.Quotation)}, nil
}

func (s *OrderService) GetOrderStatus(ctx context.Context, orderNumber string) (*OrderResult, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, fmt.Errorf("%w: order_number is required", ErrInvalidInput)
	}
	order, err := s.orderRepo.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return &OrderResult{Order: order, View: newOrderView(order, order.Quotation)}, nil
}

func canTransition(from, to string) bool {
	if from == to {
		return true
	}
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func parsePaymentDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", model.DateLayout} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPaymentDate, raw)
}

// PaymentInstructions returns the customer-facing text for a payment method.
func PaymentInstructions(method string, premium float64, orderNumber string) string {
	amount := strconv.FormatFloat(premium, 'f', 2, 64)
	switch method {
	case model.PaymentMethodCreditCard:
		return "Please proceed to the payment gateway to complete your credit card payment."
	case model.PaymentMethodBankTransfer:
		return fmt.Sprintf("Please transfer %s THB to:\nBank: Bangkok Bank\nAccount: 123-456-7890\nName: Zeus Insurance Co., Ltd.\nReference: %s", amount, orderNumber)
	case model.PaymentMethodPromptPay:
		return fmt.Sprintf("Please scan the QR code or transfer to PromptPay ID: 0123456789\nAmount: %s THB\nReference: %s", amount, orderNumber)
	case model.PaymentMethodPending:
		return "Payment method not selected. Please choose a payment method to proceed."
	default:
		return "Please contact support for payment instructions."
	}
}

func newOrderView(order *model.Order, quotation *model.Quotation) *OrderView {
	view := &OrderView{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		PaymentStatus:   order.PaymentStatus,
		PaymentMethod:   order.PaymentMethod,
		PaymentDate:     order.PaymentDate,
		PolicyNumber:    order.PolicyNumber,
		PolicyStartDate: order.PolicyStartDate,
		PolicyEndDate:   order.PolicyEndDate,
		PolicyStatus:    order.PolicyStatus,
		CreatedAt:       order.CreatedAt,
	}
	if quotation != nil {
		view.QuotationNumber = quotation.QuotationNumber
		view.CustomerName = quotation.CustomerName
		view.CustomerEmail = quotation.CustomerEmail
		view.CustomerPhone = quotation.CustomerPhone
		view.TotalAmount = quotation.TotalPremium
	}
	return view
}
