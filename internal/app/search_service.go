package app

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"zeus-insurance/internal/model"
	"zeus-insurance/internal/repository"
)

var yearToken = regexp.MustCompile(`\b\d{4}\b`)

type VehicleQuery struct {
	Brand    string
	Model    string
	SubModel string
	Year     int
}

type SearchResult struct {
	Step     string                    `json:"step"`
	Message  string                    `json:"result"`
	Records  []model.VehiclePlanRecord `json:"records"`
	Vehicles []model.VehicleSummary    `json:"vehicles,omitempty"`
}

// cascadeStep relaxes the query; a step whose filter is empty or repeats an
// earlier one is not run again.
type cascadeStep struct {
	name    string
	filter  func(VehicleQuery) repository.VehicleFilter
	message func(VehicleQuery) string
}

var vehicleCascade = []cascadeStep{
	{
		name: "exact",
		filter: func(q VehicleQuery) repository.VehicleFilter {
			return repository.VehicleFilter{Brand: q.Brand, Model: q.Model, SubModel: q.SubModel, Year: q.Year}
		},
		message: func(VehicleQuery) string {
			return "Found matching quotation details."
		},
	},
	{
		name: "without_year",
		filter: func(q VehicleQuery) repository.VehicleFilter {
			return repository.VehicleFilter{Brand: q.Brand, Model: q.Model, SubModel: q.SubModel}
		},
		message: func(q VehicleQuery) string {
			return fmt.Sprintf("No exact match for year %d. Showing the same vehicle across all available years.", q.Year)
		},
	},
	{
		name: "without_sub_model",
		filter: func(q VehicleQuery) repository.VehicleFilter {
			return repository.VehicleFilter{Brand: q.Brand, Model: q.Model, Year: q.Year}
		},
		message: func(q VehicleQuery) string {
			return fmt.Sprintf("No match for sub-model %q. Showing other sub-models of the same vehicle.", q.SubModel)
		},
	},
	{
		name: "brand_model",
		filter: func(q VehicleQuery) repository.VehicleFilter {
			return repository.VehicleFilter{Brand: q.Brand, Model: q.Model}
		},
		message: func(q VehicleQuery) string {
			return strings.TrimSpace(fmt.Sprintf("No match for the requested details. Showing all %s %s records.", q.Brand, q.Model))
		},
	},
	{
		name: "brand",
		filter: func(q VehicleQuery) repository.VehicleFilter {
			return repository.VehicleFilter{Brand: q.Brand}
		},
		message: func(q VehicleQuery) string {
			return fmt.Sprintf("No match for the requested model. Showing all %s records.", q.Brand)
		},
	},
}

type SearchService struct {
	catalogRepo *repository.CatalogRepository
}

func NewSearchService(catalogRepo *repository.CatalogRepository) *SearchService {
	return &SearchService{catalogRepo: catalogRepo}
}

// NormalizeVehicleQuery trims fields and removes year tokens from SubModel.
func NormalizeVehicleQuery(q VehicleQuery) VehicleQuery {
	q.Brand = strings.TrimSpace(q.Brand)
	q.Model = strings.TrimSpace(q.Model)
	q.SubModel = strings.Join(strings.Fields(yearToken.ReplaceAllString(q.SubModel, " ")), " ")
	if q.Year < 0 {
		q.Year = 0
	}
	return q
}

// SearchVehicles runs the relaxation cascade and returns the first non-empty
// step. When every step is empty it returns the catalog listing.
func (s *SearchService) SearchVehicles(ctx context.Context, query VehicleQuery) (*SearchResult, error) {
	query = NormalizeVehicleQuery(query)
	if query.Brand == "" && query.Model == "" && query.SubModel == "" && query.Year == 0 {
		return nil, ErrNoSearchAttributes
	}

	tried := make(map[repository.VehicleFilter]bool, len(vehicleCascade))
	for _, step := range vehicleCascade {
		filter := step.filter(query)
		if filter.IsEmpty() || tried[filter] {
			continue
		}
		tried[filter] = true

		records, err := s.catalogRepo.Search(ctx, filter)
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			return &SearchResult{Step: step.name, Message: step.message(query), Records: records}, nil
		}
	}

	vehicles, err := s.catalogRepo.ListVehicles(ctx)
	if err != nil {
		return nil, err
	}
	return &SearchResult{
		Step:     "catalog",
		Message:  "No matching vehicle found. Showing every vehicle in the catalog; ask the customer which one they mean.",
		Records:  []model.VehiclePlanRecord{},
		Vehicles: vehicles,
	}, nil
}
