package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"zeus-insurance/internal/model"
	"zeus-insurance/internal/repository"
)

type CreateQuotationInput struct {
	SessionID     string
	CarModelID    uint
	PlanID        uint
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

type QuotationView struct {
	QuotationID     string  `json:"quotation_id"`
	QuotationNumber string  `json:"quotation_number"`
	Vehicle         string  `json:"vehicle"`
	VehiclePrice    float64 `json:"vehicle_price"`
	PlanType        string  `json:"plan_type"`
	PlanName        string  `json:"plan_name"`
	Insurer         string  `json:"insurer"`
	AnnualPremium   float64 `json:"annual_premium"`
	Deductible      float64 `json:"deductible"`
	TotalPremium    float64 `json:"total_premium"`
	ValidUntil      string  `json:"valid_until"`
	CustomerName    *string `json:"customer_name"`
	CustomerEmail   *string `json:"customer_email"`
	CustomerPhone   *string `json:"customer_phone"`
	Status          string  `json:"status"`
}

type QuotationService struct {
	catalogRepo   *repository.CatalogRepository
	quotationRepo *repository.QuotationRepository
	now           func() time.Time
}

func NewQuotationService(
	catalogRepo *repository.CatalogRepository,
	quotationRepo *repository.QuotationRepository,
) *QuotationService {
	return &QuotationService{
		catalogRepo:   catalogRepo,
		quotationRepo: quotationRepo,
		now:           time.Now,
	}
}

func (s *QuotationService) CreateQuotation(ctx context.Context, input CreateQuotationInput) (*QuotationView, error) {
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" || input.CarModelID == 0 || input.PlanID == 0 {
		return nil, fmt.Errorf("%w: session_id, car_model_id and plan_id are required", ErrInvalidInput)
	}

	record, err := s.catalogRepo.GetRecord(ctx, input.CarModelID, input.PlanID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrVehiclePlanNotFound
	}

	now := s.now()
	number, err := allocateReference(ctx, "QT", now, s.quotationRepo.NumberExists)
	if err != nil {
		return nil, err
	}

	quotation := &model.Quotation{
		SessionID:         sessionID,
		CarModelID:        record.CarModelID,
		PlanID:            record.PlanID,
		CustomerName:      optional(input.CustomerName),
		CustomerEmail:     optional(input.CustomerEmail),
		CustomerPhone:     optional(input.CustomerPhone),
		CarEstimatedPrice: record.CarEstimatedPrice,
		BasePremium:       record.BasePremium,
		Deductible:        record.Deductible,
		TotalPremium:      record.BasePremium,
		QuotationNumber:   number,
		ValidUntil:        now.Add(model.QuotationValidity),
		Status:            model.QuotationStatusDraft,
		CreatedAt:         now,
	}
	if err := s.quotationRepo.Create(ctx, quotation); err != nil {
		return nil, err
	}
	return newQuotationView(quotation, record, now), nil
}

func newQuotationView(q *model.Quotation, record *model.VehiclePlanRecord, now time.Time) *QuotationView {
	return &QuotationView{
		QuotationID:     q.ID,
		QuotationNumber: q.QuotationNumber,
		Vehicle:         fmt.Sprintf("%s %s %s (%d)", record.Brand, record.Model, record.SubModel, record.Year),
		VehiclePrice:    q.CarEstimatedPrice,
		PlanType:        record.PlanType,
		PlanName:        record.PlanName,
		Insurer:         record.InsurerName,
		AnnualPremium:   q.BasePremium,
		Deductible:      q.Deductible,
		TotalPremium:    q.TotalPremium,
		ValidUntil:      q.ValidUntil.Format(model.DateLayout),
		CustomerName:    q.CustomerName,
		CustomerEmail:   q.CustomerEmail,
		CustomerPhone:   q.CustomerPhone,
		Status:          q.EffectiveStatus(now),
	}
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
