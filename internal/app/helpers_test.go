package app

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"zeus-insurance/internal/model"
	"zeus-insurance/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.ChatSession{},
		&model.Message{},
		&model.CarModel{},
		&model.InsurancePlan{},
		&model.PolicyDocument{},
		&model.Quotation{},
		&model.Order{},
		&model.Operator{},
	))
	return db
}

type seededCar struct {
	car  model.CarModel
	plan model.InsurancePlan
}

func seedCatalog(t *testing.T, repo *repository.CatalogRepository) map[string]seededCar {
	t.Helper()
	ctx := context.Background()

	cars := []model.CarModel{
		{Brand: "Honda", Model: "Civic", SubModel: "e:HEV RS", Year: 2024, EstimatedPrice: 1_199_000},
		{Brand: "Honda", Model: "City", SubModel: "RS", Year: 2023, EstimatedPrice: 699_000},
		{Brand: "Toyota", Model: "Yaris", SubModel: "Premium", Year: 2024, EstimatedPrice: 659_000},
	}
	seeded := make(map[string]seededCar, len(cars))
	for i := range cars {
		require.NoError(t, repo.CreateCarModel(ctx, &cars[i]))
		plan := model.InsurancePlan{
			CarModelID:  cars[i].ID,
			PlanType:    "Type 1",
			PlanName:    "Comprehensive Plus",
			InsurerName: "Zeus Insurance",
			BasePremium: 18_500,
			Deductible:  2_000,
		}
		require.NoError(t, repo.CreatePlan(ctx, &plan))
		seeded[cars[i].Model] = seededCar{car: cars[i], plan: plan}
	}
	return seeded
}

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func newClock() *fixedClock {
	return &fixedClock{now: time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)}
}

// fakeEmbedder maps known texts to vectors padded to the given width.
type fakeEmbedder struct {
	width   int
	vectors map[string][]float32
	fails   int
	calls   int
}

func (e *fakeEmbedder) vector(text string) []float32 {
	out := make([]float32, e.width)
	copy(out, e.vectors[text])
	return out
}

func (e *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.fails > 0 {
		e.fails--
		return nil, errTransient
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

type transientError struct{}

func (transientError) Error() string { return "rate limited" }

var errTransient = transientError{}
