package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"zeus-insurance/internal/model"
)

const maxCatalogRecords = 100

// VehicleFilter selects catalog rows. Text fields match as case-insensitive
// substrings; Year matches exactly. Zero values are ignored.
type VehicleFilter struct {
	Brand    string
	Model    string
	SubModel string
	Year     int
}

func (f VehicleFilter) IsEmpty() bool {
	return f.Brand == "" && f.Model == "" && f.SubModel == "" && f.Year == 0
}

type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) records(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("car_models AS c").
		Select(`c.id AS car_model_id, p.id AS plan_id, c.brand, c.model, c.sub_model, c.year,
			c.estimated_price AS car_estimated_price, p.plan_type, p.plan_name, p.insurer_name,
			p.base_premium, p.deductible`).
		Joins("JOIN insurance_plans AS p ON p.car_model_id = c.id")
}

func (r *CatalogRepository) Search(ctx context.Context, filter VehicleFilter) ([]model.VehiclePlanRecord, error) {
	query := r.records(ctx)
	if filter.Brand != "" {
		query = query.Where("LOWER(c.brand) LIKE ? ESCAPE '!'", containsPattern(filter.Brand))
	}
	if filter.Model != "" {
		query = query.Where("LOWER(c.model) LIKE ? ESCAPE '!'", containsPattern(filter.Model))
	}
	if filter.SubModel != "" {
		query = query.Where("LOWER(c.sub_model) LIKE ? ESCAPE '!'", containsPattern(filter.SubModel))
	}
	if filter.Year != 0 {
		query = query.Where("c.year = ?", filter.Year)
	}

	var records []model.VehiclePlanRecord
	if err := query.
		Order("c.brand ASC, c.model ASC, c.sub_model ASC, c.year DESC, p.base_premium ASC").
		Limit(maxCatalogRecords).
		Scan(&records).Error; err != nil {
		return nil, fmt.Errorf("search vehicle plans failed: %w", err)
	}
	return records, nil
}

func (r *CatalogRepository) GetRecord(ctx context.Context, carModelID, planID uint) (*model.VehiclePlanRecord, error) {
	var records []model.VehiclePlanRecord
	if err := r.records(ctx).
		Where("c.id = ? AND p.id = ?", carModelID, planID).
		Limit(1).
		Scan(&records).Error; err != nil {
		return nil, fmt.Errorf("get vehicle plan failed: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (r *CatalogRepository) ListVehicles(ctx context.Context) ([]model.VehicleSummary, error) {
	var vehicles []model.VehicleSummary
	if err := r.db.WithContext(ctx).
		Model(&model.CarModel{}).
		Distinct("brand", "model", "sub_model", "year").
		Order("brand ASC, model ASC, sub_model ASC, year DESC").
		Scan(&vehicles).Error; err != nil {
		return nil, fmt.Errorf("list vehicles failed: %w", err)
	}
	return vehicles, nil
}

func (r *CatalogRepository) CreateCarModel(ctx context.Context, car *model.CarModel) error {
	if err := r.db.WithContext(ctx).Create(car).Error; err != nil {
		return fmt.Errorf("create car model failed: %w", err)
	}
	return nil
}

func (r *CatalogRepository) CreatePlan(ctx context.Context, plan *model.InsurancePlan) error {
	if err := r.db.WithContext(ctx).Create(plan).Error; err != nil {
		return fmt.Errorf("create insurance plan failed: %w", err)
	}
	return nil
}

// likeEscaper quotes LIKE wildcards so user text matches literally. '!' is
// used as the escape character since a backslash needs doubling on mysql.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func containsPattern(value string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(value))) + "%"
}
