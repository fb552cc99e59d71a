package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"professor-rag/internal/models"
)

type countingEmbedder struct {
	batches [][]string
	err     error
}

func (e *countingEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return []float32{1}, e.err
}

func (e *countingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.batches = append(e.batches, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i]))}
	}
	return out, nil
}

type recordingStore struct {
	batches  [][]models.ReviewEmbedding
	err      error
	resetErr error
	resets   int
}

func (s *recordingStore) Reset(_ context.Context) error {
	if s.resetErr != nil {
		return s.resetErr
	}
	s.resets++
	s.batches = nil
	return nil
}

func (s *recordingStore) Upsert(_ context.Context, records []models.ReviewEmbedding) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, records)
	return nil
}

func reviews(n int) []models.ProfessorReview {
	out := make([]models.ProfessorReview, n)
	for i := range out {
		out[i] = models.ProfessorReview{Professor: string(rune('A' + i)), Subject: "CS", Stars: 4, Review: "good"}
	}
	return out
}

func TestSeed_Batches(t *testing.T) {
	emb := &countingEmbedder{}
	store := &recordingStore{}
	s := NewSeeder(emb, store, 2)

	n, err := s.Seed(context.Background(), reviews(5))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.Len(t, store.batches, 3)
	assert.Len(t, store.batches[2], 1)
	assert.Equal(t, "E", store.batches[2][0].Professor)
	assert.Equal(t, []float32{4}, store.batches[0][0].Embedding)
}

func TestSeed_Errors(t *testing.T) {
	boom := errors.New("boom")

	n, err := NewSeeder(&countingEmbedder{err: boom}, &recordingStore{}, 2).Seed(context.Background(), reviews(3))
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, n)

	n, err = NewSeeder(&countingEmbedder{}, &recordingStore{err: boom}, 2).Seed(context.Background(), reviews(3))
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, n)
}

func TestSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"reviews":[{"professor":"Dr. A","subject":"CS","stars":5,"review":"great"}]}`), 0o600))

	store := &recordingStore{}
	s := NewSeeder(&countingEmbedder{}, store, 0)

	n, err := s.SeedFile(context.Background(), path, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.SeedFile(context.Background(), path, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, store.batches, 2)
	assert.Zero(t, store.resets)

	n, err = s.SeedFile(context.Background(), path, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.resets)
	assert.Len(t, store.batches, 1)
}

func TestSeedFile_Reset(t *testing.T) {
	boom := errors.New("boom")
	good := filepath.Join(t.TempDir(), "reviews.json")
	require.NoError(t, os.WriteFile(good, []byte(`[{"professor":"Dr. A","subject":"CS","stars":5,"review":"great"}]`), 0o600))

	store := &recordingStore{resetErr: boom}
	_, err := NewSeeder(&countingEmbedder{}, store, 0).SeedFile(context.Background(), good, true)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.batches)

	// a file that does not parse leaves the store untouched
	store = &recordingStore{}
	_, err = NewSeeder(&countingEmbedder{}, store, 0).SeedFile(context.Background(), filepath.Join(t.TempDir(), "missing.json"), true)
	assert.Error(t, err)
	assert.Zero(t, store.resets)
}
