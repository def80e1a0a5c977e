package app

import (
	"context"
	"math"
	"sort"

	"zeus-insurance/internal/model"
	"zeus-insurance/internal/repository"
)

// PolicyIndex answers similarity queries over embedded policy documents.
type PolicyIndex interface {
	Match(ctx context.Context, query []float32, threshold float64, count int, section string) ([]model.PolicyMatch, error)
}

// NewPolicyIndex picks the match_documents function on postgres and
// in-process ranking on every other dialect.
func NewPolicyIndex(dialect string, policyRepo *repository.PolicyRepository) PolicyIndex {
	if dialect == "postgres" {
		return &sqlPolicyIndex{policyRepo: policyRepo}
	}
	return &scanPolicyIndex{policyRepo: policyRepo}
}

type sqlPolicyIndex struct {
	policyRepo *repository.PolicyRepository
}

func (i *sqlPolicyIndex) Match(ctx context.Context, query []float32, threshold float64, count int, section string) ([]model.PolicyMatch, error) {
	return i.policyRepo.MatchDocuments(ctx, query, threshold, count, section)
}

type scanPolicyIndex struct {
	policyRepo *repository.PolicyRepository
}

func (i *scanPolicyIndex) Match(ctx context.Context, query []float32, threshold float64, count int, section string) ([]model.PolicyMatch, error) {
	docs, err := i.policyRepo.ListEmbedded(ctx, section)
	if err != nil {
		return nil, err
	}

	matches := make([]model.PolicyMatch, 0, len(docs))
	for _, doc := range docs {
		if doc.Embedding == nil {
			continue
		}
		score := cosineSimilarity(query, doc.Embedding.Slice())
		if score < threshold {
			continue
		}
		matches = append(matches, model.PolicyMatch{
			ID:         doc.ID,
			Section:    doc.Section,
			PlanType:   doc.PlanType,
			Content:    doc.Content,
			Metadata:   doc.Metadata,
			Similarity: score,
		})
	}
	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Similarity > matches[b].Similarity
	})
	if count > 0 && len(matches) > count {
		matches = matches[:count]
	}
	return matches, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
