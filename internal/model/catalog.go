package model

// CarModel and InsurancePlan are reference data maintained outside the service.
type CarModel struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	Brand          string  `gorm:"size:64;not null;index" json:"brand"`
	Model          string  `gorm:"size:64;not null;index" json:"model"`
	SubModel       string  `gorm:"size:128" json:"sub_model"`
	Year           int     `gorm:"index" json:"year"`
	EstimatedPrice float64 `json:"estimated_price"`
}

type InsurancePlan struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	CarModelID  uint    `gorm:"not null;index" json:"car_model_id"`
	PlanType    string  `gorm:"size:32;not null" json:"plan_type"`
	PlanName    string  `gorm:"size:128;not null" json:"plan_name"`
	InsurerName string  `gorm:"size:128;not null" json:"insurer_name"`
	BasePremium float64 `json:"base_premium"`
	Deductible  float64 `json:"deductible"`
}

// VehiclePlanRecord is one car model joined with one of its plans.
type VehiclePlanRecord struct {
	CarModelID        uint    `json:"car_model_id"`
	PlanID            uint    `json:"plan_id"`
	Brand             string  `json:"brand"`
	Model             string  `json:"model"`
	SubModel          string  `json:"sub_model"`
	Year              int     `json:"year"`
	CarEstimatedPrice float64 `json:"car_estimated_price"`
	PlanType          string  `json:"plan_type"`
	PlanName          string  `json:"plan_name"`
	InsurerName       string  `json:"insurer_name"`
	BasePremium       float64 `json:"base_premium"`
	Deductible        float64 `json:"deductible"`
}

// VehicleSummary is the catalog projection returned when nothing matched.
type VehicleSummary struct {
	Brand    string `json:"brand"`
	Model    string `json:"model"`
	SubModel string `json:"sub_model"`
	Year     int    `json:"year"`
}
