package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/datatypes"

	"zeus-insurance/internal/ai"
	"zeus-insurance/internal/model"
	"zeus-insurance/internal/repository"
)

const (
	defaultChunkSize    = 1200
	defaultChunkOverlap = 150
)

type IngestConfig struct {
	BatchSize   int
	BatchPause  time.Duration
	MaxAttempts int
	BackoffStep time.Duration
}

type EmbedOptions struct {
	Filter repository.PolicyFilter
	DryRun bool
}

// IngestReport summarises one embedding sweep.
type IngestReport struct {
	Processed   int    `json:"processed"`
	Succeeded   int    `json:"succeeded"`
	FailedIDs   []uint `json:"failed_ids"`
	Batches     int    `json:"batches"`
	SelectedIDs []uint `json:"selected_ids,omitempty"` // dry run only
}

func (r *IngestReport) Failed() int { return len(r.FailedIDs) }

// IngestionService fills in policy document embeddings in fixed-size
// batches and imports new policy text as unembedded documents.
type IngestionService struct {
	policyRepo *repository.PolicyRepository
	embedder   ai.Embedder
	cfg        IngestConfig
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
}

func NewIngestionService(policyRepo *repository.PolicyRepository, embedder ai.Embedder, cfg IngestConfig) *IngestionService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &IngestionService{
		policyRepo: policyRepo,
		embedder:   embedder,
		cfg:        cfg,
		sleep:      sleepContext,
		logger:     slog.Default().With("component", "ingest"),
	}
}

// EmbedDocuments embeds every selected document. A batch that keeps failing
// after all attempts marks its documents failed and the sweep moves on; the
// returned error is reserved for problems that stop the whole run.
func (s *IngestionService) EmbedDocuments(ctx context.Context, opts EmbedOptions) (*IngestReport, error) {
	if opts.Filter.Section != "" && !model.IsPolicySection(opts.Filter.Section) {
		return nil, ErrInvalidSection
	}
	docs, err := s.policyRepo.ListForEmbedding(ctx, opts.Filter)
	if err != nil {
		return nil, err
	}

	report := &IngestReport{FailedIDs: []uint{}}
	if len(docs) == 0 {
		s.logger.Info("no policy documents need embedding")
		return report, nil
	}
	s.logger.Info("starting embedding sweep", "documents", len(docs), "batch_size", s.cfg.BatchSize, "dry_run", opts.DryRun)
	if opts.DryRun {
		report.Processed = len(docs)
		for _, doc := range docs {
			report.SelectedIDs = append(report.SelectedIDs, doc.ID)
		}
		return report, nil
	}

	for start := 0; start < len(docs); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(docs))
		batch := docs[start:end]
		report.Batches++
		report.Processed += len(batch)

		s.embedBatch(ctx, report, batch)

		if end < len(docs) && s.cfg.BatchPause > 0 {
			if err := s.sleep(ctx, s.cfg.BatchPause); err != nil {
				return report, err
			}
		}
	}

	s.logger.Info("embedding sweep finished",
		"processed", report.Processed,
		"succeeded", report.Succeeded,
		"failed", report.Failed(),
	)
	return report, nil
}

func (s *IngestionService) embedBatch(ctx context.Context, report *IngestReport, batch []model.PolicyDocument) {
	texts := make([]string, len(batch))
	for i, doc := range batch {
		texts[i] = doc.Content
	}

	var vectors [][]float32
	err := s.retry(ctx, func() error {
		var embedErr error
		vectors, embedErr = s.embedder.EmbedDocuments(ctx, texts)
		if embedErr == nil && len(vectors) != len(texts) {
			embedErr = fmt.Errorf("embedding count mismatch: got %d want %d", len(vectors), len(texts))
		}
		return embedErr
	})
	if err != nil {
		s.logger.Error("embedding batch failed", "batch", report.Batches, "attempts", s.cfg.MaxAttempts, "err", err)
		for _, doc := range batch {
			report.FailedIDs = append(report.FailedIDs, doc.ID)
		}
		return
	}

	for i, doc := range batch {
		vector := ai.TruncateEmbedding(vectors[i], model.EmbeddingDimensions)
		if len(vector) != model.EmbeddingDimensions {
			s.logger.Error("embedding too short", "id", doc.ID, "dimensions", len(vector))
			report.FailedIDs = append(report.FailedIDs, doc.ID)
			continue
		}
		if err := s.policyRepo.UpdateEmbedding(ctx, doc.ID, model.NewEmbedding(vector)); err != nil {
			s.logger.Error("store embedding failed", "id", doc.ID, "err", err)
			report.FailedIDs = append(report.FailedIDs, doc.ID)
			continue
		}
		report.Succeeded++
		s.logger.Debug("embedded policy document", "id", doc.ID, "preview", preview(doc.Content, 60))
	}
}

// retry runs op up to MaxAttempts times, waiting attempt*BackoffStep between
// attempts.
func (s *IngestionService) retry(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		s.logger.Warn("embedding attempt failed", "attempt", attempt, "max_attempts", s.cfg.MaxAttempts, "err", lastErr)
		if attempt == s.cfg.MaxAttempts {
			break
		}
		if err := s.sleep(ctx, time.Duration(attempt)*s.cfg.BackoffStep); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: failed after %d attempts: %v", ErrUpstream, s.cfg.MaxAttempts, lastErr)
}

type ImportInput struct {
	Text     string
	PlanType string
	Section  string
	Source   string
}

// ImportDocuments splits policy text into overlapping chunks and stores them
// without embeddings. It returns the created documents.
func (s *IngestionService) ImportDocuments(ctx context.Context, input ImportInput) ([]model.PolicyDocument, error) {
	planType := strings.TrimSpace(input.PlanType)
	section := strings.TrimSpace(input.Section)
	if planType == "" {
		return nil, fmt.Errorf("%w: plan_type is required", ErrInvalidInput)
	}
	if !model.IsPolicySection(section) {
		return nil, ErrInvalidSection
	}
	text := normalizeWhitespace(input.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: no text to import", ErrInvalidInput)
	}

	chunks := chunkText(text, defaultChunkSize, defaultChunkOverlap)
	docs := make([]model.PolicyDocument, 0, len(chunks))
	for i, chunk := range chunks {
		meta, err := json.Marshal(map[string]any{
			"source":      input.Source,
			"chunk_index": i,
			"chunk_count": len(chunks),
		})
		if err != nil {
			return nil, fmt.Errorf("marshal document metadata failed: %w", err)
		}
		docs = append(docs, model.PolicyDocument{
			Section:  section,
			PlanType: planType,
			Content:  chunk,
			Metadata: datatypes.JSON(meta),
		})
	}
	if err := s.policyRepo.CreateBatch(ctx, docs); err != nil {
		return nil, err
	}
	s.logger.Info("imported policy text", "source", input.Source, "documents", len(docs), "section", section, "plan_type", planType)
	return docs, nil
}

// chunkText splits text into overlapping chunks by rune count.
func chunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap >= size {
		overlap = size / 2
	}
	var chunks []string
	runes := []rune(text)
	for i := 0; i < len(runes); {
		end := min(i+size, len(runes))
		if chunk := strings.TrimSpace(string(runes[i:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
		i += size - overlap
	}
	return chunks
}

func normalizeWhitespace(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, strings.Join(strings.Fields(line), " "))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

