package chromemdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"professor-rag/internal/config"
	"professor-rag/internal/models"
)

func newMemoryManager(t *testing.T) *VectorDBManager {
	t.Helper()
	m, err := NewVectorDBManager(&config.VectorDBConfig{InMemory: true, Collection: "professors"}, "")
	require.NoError(t, err)
	return m
}

func seed(t *testing.T, m *VectorDBManager) {
	t.Helper()
	err := m.Upsert(context.Background(), []models.ReviewEmbedding{
		{ProfessorReview: models.ProfessorReview{Professor: "Dr. A", Subject: "CS", Stars: 4.5, Review: "clear explanations"}, Embedding: []float32{1, 0, 0}},
		{ProfessorReview: models.ProfessorReview{Professor: "Dr. B", Subject: "CS", Stars: 4, Review: "tough grader"}, Embedding: []float32{0.7, 0.7, 0}},
		{ProfessorReview: models.ProfessorReview{Professor: "Dr. C", Subject: "History", Stars: 2, Review: "boring"}, Embedding: []float32{0, 0, 1}},
		{ProfessorReview: models.ProfessorReview{Professor: "Dr. D", Subject: "Art", Stars: 3, Review: "fine"}, Embedding: []float32{0, 1, 0}},
	})
	require.NoError(t, err)
}

func TestQuery_RankOrderAndMetadata(t *testing.T) {
	m := newMemoryManager(t)
	seed(t, m)

	matches, err := m.Query(context.Background(), []float32{1, 0.1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "Dr. A", matches[0].Professor)
	assert.Equal(t, "CS", matches[0].Subject)
	assert.Equal(t, 4.5, matches[0].StarRating)
	assert.Equal(t, "clear explanations", matches[0].Review)
	assert.Equal(t, "Dr. B", matches[1].Professor)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
}

func TestQuery_ClampsToCollectionSize(t *testing.T) {
	m := newMemoryManager(t)
	err := m.Upsert(context.Background(), []models.ReviewEmbedding{
		{ProfessorReview: models.ProfessorReview{Professor: "Dr. A", Subject: "CS", Stars: 5, Review: "great"}, Embedding: []float32{1, 0}},
	})
	require.NoError(t, err)

	matches, err := m.Query(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestQuery_EmptyCollection(t *testing.T) {
	m := newMemoryManager(t)
	matches, err := m.Query(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)

	_, err = m.Query(context.Background(), nil, 3)
	assert.Error(t, err)
}

func TestExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.VectorDBConfig{InMemory: true, Path: dir, Collection: "professors"}

	m, err := NewVectorDBManager(cfg, "")
	require.NoError(t, err)
	seed(t, m)

	restored, err := NewVectorDBManager(cfg, "")
	require.NoError(t, err)
	matches, err := restored.Query(context.Background(), []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Dr. C", matches[0].Professor)
}

func TestReset(t *testing.T) {
	m := newMemoryManager(t)
	seed(t, m)

	require.NoError(t, m.Reset(context.Background()))
	matches, err := m.Query(context.Background(), []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, matches)

	seed(t, m)
	matches, err = m.Query(context.Background(), []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}
