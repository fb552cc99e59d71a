package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"professor-rag/internal/config"
	"professor-rag/internal/models"
)

// VectorDBManager keeps professor reviews in a local chromem-go collection.
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	dbPath        string
	inMemory      bool
	encryptionKey string
	filePath      string
}

const (
	compress = false
)

// NewVectorDBManager opens (or creates) the database and its collection. An in-memory
// database is restored from its export file when one exists.
func NewVectorDBManager(cfg *config.VectorDBConfig, encryptionKey string) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if cfg.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	m := &VectorDBManager{
		db:            db,
		dbPath:        cfg.Path,
		inMemory:      cfg.InMemory,
		encryptionKey: encryptionKey,
		filePath:      filepath.Join(cfg.Path, cfg.Collection+".chromem"),
	}

	if cfg.InMemory && cfg.Path != "" {
		if err := m.Import(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if _, err := m.GetOrCreateCollection(cfg.Collection); err != nil {
		return nil, err
	}
	return m, nil
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection(collectionName string) (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %v", err)
	}
	m.collection = c
	return c, nil
}

// Upsert adds one document per review, keyed by professor name.
func (m *VectorDBManager) Upsert(ctx context.Context, records []models.ReviewEmbedding) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(records))
	for _, r := range records {
		docs = append(docs, chromem.Document{
			ID:      r.Professor,
			Content: r.Review,
			Metadata: map[string]string{
				models.MetaProfessor:  r.Professor,
				models.MetaSubject:    r.Subject,
				models.MetaStarRating: strconv.FormatFloat(r.Stars, 'f', -1, 64),
			},
			Embedding: r.Embedding,
		})
	}

	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %v", err)
	}
	if m.inMemory && m.dbPath != "" {
		return m.Export()
	}
	return nil
}

// Query runs a similarity search. chromem rejects nResults larger than the collection,
// so the request is clamped to its size.
func (m *VectorDBManager) Query(ctx context.Context, vector []float32, topK int) ([]models.RetrievedMatch, error) {
	if vector == nil {
		return nil, fmt.Errorf("embedding must be provided")
	}
	n := topK
	if count := m.collection.Count(); count < n {
		n = count
	}
	matches := make([]models.RetrievedMatch, 0, n)
	if n <= 0 {
		return matches, nil
	}

	results, err := m.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       n,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	for _, r := range results {
		rating, _ := strconv.ParseFloat(r.Metadata[models.MetaStarRating], 64)
		professor := r.Metadata[models.MetaProfessor]
		if professor == "" {
			professor = r.ID
		}
		matches = append(matches, models.RetrievedMatch{
			Professor:  professor,
			Subject:    r.Metadata[models.MetaSubject],
			StarRating: rating,
			Review:     r.Content,
			Score:      r.Similarity,
		})
	}
	return matches, nil
}

// delete collection
func (m *VectorDBManager) DeleteCollection() error {
	err := m.db.DeleteCollection(m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	return nil
}

// Reset drops the collection and starts an empty one under the same name.
func (m *VectorDBManager) Reset(_ context.Context) error {
	name := m.collection.Name
	if err := m.DeleteCollection(); err != nil {
		return err
	}
	if _, err := m.GetOrCreateCollection(name); err != nil {
		return err
	}
	if m.inMemory && m.dbPath != "" {
		return m.Export()
	}
	return nil
}

// Export writes the collection to its file, encrypted when a key is set.
func (m *VectorDBManager) Export() error {
	if m.collection == nil {
		return fmt.Errorf("collection is required")
	}
	if m.dbPath == "" {
		return fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(m.dbPath, 0o755); err != nil {
		return fmt.Errorf("failed to create db path: %v", err)
	}

	log.Debug().Str("collection", m.collection.Name).Str("file", m.filePath).Msg("Exporting collection")
	if err := m.db.ExportToFile(m.filePath, compress, m.encryptionKey, m.collection.Name); err != nil {
		return fmt.Errorf("failed to export database: %v", err)
	}
	return nil
}

// Import loads a previous export. It returns os.ErrNotExist when there is none.
func (m *VectorDBManager) Import() error {
	if _, err := os.Stat(m.filePath); err != nil {
		return err
	}
	if err := m.db.ImportFromFile(m.filePath, m.encryptionKey); err != nil {
		return fmt.Errorf("failed to import database: %v", err)
	}
	return nil
}

func (m *VectorDBManager) Close() error {
	return nil
}
