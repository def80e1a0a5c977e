package repository

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"zeus-insurance/internal/model"
)

// PolicyFilter selects documents for the embedding sweep.
type PolicyFilter struct {
	Force    bool
	PlanType string
	Section  string
}

type PolicyRepository struct {
	db *gorm.DB
}

func NewPolicyRepository(db *gorm.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

func (r *PolicyRepository) CreateBatch(ctx context.Context, docs []model.PolicyDocument) error {
	if len(docs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&docs).Error; err != nil {
		return fmt.Errorf("create policy documents failed: %w", err)
	}
	return nil
}

// ListForEmbedding returns documents without an embedding, or every document
// when Force is set, narrowed by plan type and section.
func (r *PolicyRepository) ListForEmbedding(ctx context.Context, filter PolicyFilter) ([]model.PolicyDocument, error) {
	query := r.db.WithContext(ctx).Model(&model.PolicyDocument{})
	if !filter.Force {
		query = query.Where("embedding IS NULL")
	}
	if filter.PlanType != "" {
		query = query.Where("plan_type = ?", filter.PlanType)
	}
	if filter.Section != "" {
		query = query.Where("section = ?", filter.Section)
	}

	var docs []model.PolicyDocument
	if err := query.Order("id ASC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list policy documents failed: %w", err)
	}
	return docs, nil
}

func (r *PolicyRepository) UpdateEmbedding(ctx context.Context, id uint, embedding *model.Embedding) error {
	result := r.db.WithContext(ctx).
		Model(&model.PolicyDocument{}).
		Where("id = ?", id).
		Update("embedding", embedding)
	if result.Error != nil {
		return fmt.Errorf("update policy embedding failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update policy embedding failed: document %d not found", id)
	}
	return nil
}

// ListEmbedded loads every embedded document, optionally for one section.
func (r *PolicyRepository) ListEmbedded(ctx context.Context, section string) ([]model.PolicyDocument, error) {
	query := r.db.WithContext(ctx).Where("embedding IS NOT NULL")
	if section != "" {
		query = query.Where("section = ?", section)
	}

	var docs []model.PolicyDocument
	if err := query.Order("id ASC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list embedded policy documents failed: %w", err)
	}
	return docs, nil
}

// MatchDocuments calls the match_documents function installed on postgres.
func (r *PolicyRepository) MatchDocuments(
	ctx context.Context,
	query []float32,
	threshold float64,
	count int,
	section string,
) ([]model.PolicyMatch, error) {
	var sectionArg any
	if section != "" {
		sectionArg = section
	}

	var matches []model.PolicyMatch
	if err := r.db.WithContext(ctx).
		Raw("SELECT * FROM match_documents(?, ?, ?, ?)", pgvector.NewVector(query), threshold, count, sectionArg).
		Scan(&matches).Error; err != nil {
		return nil, fmt.Errorf("match policy documents failed: %w", err)
	}
	return matches, nil
}
