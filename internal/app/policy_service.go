package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"zeus-insurance/internal/ai"
	"zeus-insurance/internal/model"
)

const (
	policyMatchThreshold = 0.4
	policyMatchCount     = 4
)

type PolicyDocumentHit struct {
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Similarity float64        `json:"similarity"`
}

type PolicySearchResult struct {
	Message   string              `json:"result"`
	Documents []PolicyDocumentHit `json:"documents"`
}

type PolicyService struct {
	embedder ai.Embedder
	index    PolicyIndex
	logger   *slog.Logger
}

func NewPolicyService(embedder ai.Embedder, index PolicyIndex) *PolicyService {
	return &PolicyService{
		embedder: embedder,
		index:    index,
		logger:   slog.Default().With("component", "policy-search"),
	}
}

func (s *PolicyService) SearchPolicies(ctx context.Context, query, section string) (*PolicySearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	section = strings.TrimSpace(section)
	if section != "" && !model.IsPolicySection(section) {
		return nil, ErrInvalidSection
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrUpstream, err)
	}
	if len(vector) < model.EmbeddingDimensions {
		return nil, fmt.Errorf("%w: query embedding has %d dimensions, need %d",
			ErrUpstream, len(vector), model.EmbeddingDimensions)
	}
	vector = ai.TruncateEmbedding(vector, model.EmbeddingDimensions)

	matches, err := s.index.Match(ctx, vector, policyMatchThreshold, policyMatchCount, section)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return &PolicySearchResult{
			Message:   "No relevant policy documents found for this query.",
			Documents: []PolicyDocumentHit{},
		}, nil
	}

	hits := make([]PolicyDocumentHit, 0, len(matches))
	for _, match := range matches {
		hits = append(hits, PolicyDocumentHit{
			Content:    match.Content,
			Metadata:   s.matchMetadata(match),
			Similarity: math.Round(match.Similarity*10000) / 10000,
		})
	}
	return &PolicySearchResult{
		Message:   fmt.Sprintf("Found %d relevant policy document(s).", len(hits)),
		Documents: hits,
	}, nil
}

func (s *PolicyService) matchMetadata(match model.PolicyMatch) map[string]any {
	metadata := map[string]any{}
	if len(match.Metadata) > 0 {
		if err := json.Unmarshal(match.Metadata, &metadata); err != nil {
			s.logger.Warn("policy document metadata is not a JSON object", "document_id", match.ID, "err", err)
			metadata = map[string]any{}
		}
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	if _, ok := metadata["section"]; !ok && match.Section != "" {
		metadata["section"] = match.Section
	}
	if _, ok := metadata["plan_type"]; !ok && match.PlanType != "" {
		metadata["plan_type"] = match.PlanType
	}
	return metadata
}
