package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zeus-insurance/internal/model"
	"zeus-insurance/internal/repository"
)

type ingestFixture struct {
	repo     *repository.PolicyRepository
	embedder *fakeEmbedder
	svc      *IngestionService
	sleeps   []time.Duration
}

func newIngestFixture(t *testing.T, docs int, width int) *ingestFixture {
	t.Helper()
	db := newTestDB(t)
	repo := repository.NewPolicyRepository(db)

	seed := make([]model.PolicyDocument, docs)
	for i := range seed {
		seed[i] = model.PolicyDocument{
			Section:  model.SectionCoverage,
			PlanType: "Type 1",
			Content:  fmt.Sprintf("Clause %d covers windscreen damage.", i+1),
		}
	}
	require.NoError(t, repo.CreateBatch(context.Background(), seed))

	f := &ingestFixture{
		repo:     repo,
		embedder: &fakeEmbedder{width: width, vectors: map[string][]float32{}},
	}
	f.svc = NewIngestionService(repo, f.embedder, IngestConfig{
		BatchSize:   5,
		BatchPause:  time.Second,
		MaxAttempts: 3,
		BackoffStep: 2 * time.Second,
	})
	f.svc.sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}
	return f
}

func (f *ingestFixture) pending(t *testing.T) int {
	t.Helper()
	docs, err := f.repo.ListForEmbedding(context.Background(), repository.PolicyFilter{})
	require.NoError(t, err)
	return len(docs)
}

func TestEmbedDocumentsInBatches(t *testing.T) {
	f := newIngestFixture(t, 7, 3072)

	report, err := f.svc.EmbedDocuments(context.Background(), EmbedOptions{})
	require.NoError(t, err)
	assert.Equal(t, 7, report.Processed)
	assert.Equal(t, 7, report.Succeeded)
	assert.Equal(t, 2, report.Batches)
	assert.Empty(t, report.FailedIDs)
	assert.Equal(t, 2, f.embedder.calls)
	assert.Equal(t, []time.Duration{time.Second}, f.sleeps)
	assert.Zero(t, f.pending(t))

	again, err := f.svc.EmbedDocuments(context.Background(), EmbedOptions{})
	require.NoError(t, err)
	assert.Zero(t, again.Processed)

	forced, err := f.svc.EmbedDocuments(context.Background(), EmbedOptions{Filter: repository.PolicyFilter{Force: true}})
	require.NoError(t, err)
	assert.Equal(t, 7, forced.Succeeded)
}

func TestEmbedDocumentsRetriesWithLinearBackoff(t *testing.T) {
	f := newIngestFixture(t, 3, model.EmbeddingDimensions)
	f.embedder.fails = 2

	report, err := f.svc.EmbedDocuments(context.Background(), EmbedOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 3, f.embedder.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, f.sleeps)
}

func TestEmbedDocumentsContinuesAfterFailedBatch(t *testing.T) {
	f := newIngestFixture(t, 7, model.EmbeddingDimensions)
	f.embedder.fails = 3

	report, err := f.svc.EmbedDocuments(context.Background(), EmbedOptions{})
	require.NoError(t, err)
	assert.Equal(t, 7, report.Processed)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 5, report.Failed())
	assert.Equal(t, []uint{1, 2, 3, 4, 5}, report.FailedIDs)
	assert.Equal(t, 4, f.embedder.calls)
	assert.Equal(t, 5, f.pending(t))
}

func TestEmbedDocumentsRejectsShortVectors(t *testing.T) {
	f := newIngestFixture(t, 2, 768)

	report, err := f.svc.EmbedDocuments(context.Background(), EmbedOptions{})
	require.NoError(t, err)
	assert.Zero(t, report.Succeeded)
	assert.Equal(t, 2, report.Failed())
	assert.Equal(t, 2, f.pending(t))
}

func TestEmbedDocumentsDryRun(t *testing.T) {
	f := newIngestFixture(t, 4, model.EmbeddingDimensions)

	report, err := f.svc.EmbedDocuments(context.Background(), EmbedOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Processed)
	assert.Equal(t, []uint{1, 2, 3, 4}, report.SelectedIDs)
	assert.Zero(t, report.Succeeded)
	assert.Zero(t, f.embedder.calls)
	assert.Equal(t, 4, f.pending(t))
}

func TestEmbedDocumentsValidatesSection(t *testing.T) {
	f := newIngestFixture(t, 1, model.EmbeddingDimensions)

	_, err := f.svc.EmbedDocuments(context.Background(), EmbedOptions{Filter: repository.PolicyFilter{Section: "Premium"}})
	assert.ErrorIs(t, err, ErrInvalidSection)
}

func TestRetryGivesUpAsUpstreamError(t *testing.T) {
	f := newIngestFixture(t, 0, model.EmbeddingDimensions)
	calls := 0

	err := f.svc.retry(context.Background(), func() error {
		calls++
		return errTransient
	})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, 3, calls)
}

func TestImportDocumentsChunksText(t *testing.T) {
	f := newIngestFixture(t, 0, model.EmbeddingDimensions)
	text := strings.Repeat("The insurer pays for repairs at an authorised garage.   ", 50)

	docs, err := f.svc.ImportDocuments(context.Background(), ImportInput{
		Text:     text,
		PlanType: "Type 1",
		Section:  model.SectionCoverage,
		Source:   "type1-wording.pdf",
	})
	require.NoError(t, err)
	require.Greater(t, len(docs), 1)
	for _, doc := range docs {
		assert.LessOrEqual(t, len([]rune(doc.Content)), defaultChunkSize)
		assert.NotContains(t, doc.Content, "   ")
	}

	var meta map[string]any
	require.NoError(t, json.Unmarshal(docs[1].Metadata, &meta))
	assert.Equal(t, "type1-wording.pdf", meta["source"])
	assert.Equal(t, float64(1), meta["chunk_index"])
	assert.Equal(t, float64(len(docs)), meta["chunk_count"])
	assert.Equal(t, len(docs), f.pending(t))
}

func TestImportDocumentsValidation(t *testing.T) {
	f := newIngestFixture(t, 0, model.EmbeddingDimensions)
	ctx := context.Background()

	_, err := f.svc.ImportDocuments(ctx, ImportInput{Text: "x", Section: model.SectionCoverage})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.ImportDocuments(ctx, ImportInput{Text: "x", PlanType: "Type 1", Section: "Premium"})
	assert.ErrorIs(t, err, ErrInvalidSection)

	_, err = f.svc.ImportDocuments(ctx, ImportInput{Text: " \n\t ", PlanType: "Type 1", Section: model.SectionCoverage})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestChunkTextOverlap(t *testing.T) {
	chunks := chunkText("abcdefghij", 4, 1)
	assert.Equal(t, []string{"abcd", "defg", "ghij"}, chunks)
	assert.Nil(t, chunkText("", 4, 1))
}
