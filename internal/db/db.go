package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"professor-rag/internal/config"
	"professor-rag/internal/models"
)

// Review is one professor review row. Its embedding column is a pgvector vector.
type Review struct {
	bun.BaseModel `bun:"table:professor_reviews,alias:r"`
	Professor     string          `bun:"professor,pk"`
	Subject       string          `bun:"subject,notnull"`
	StarRating    float64         `bun:"star_rating,notnull"`
	Review        string          `bun:"review,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,type:vector,notnull"`
	Distance      float64         `bun:"distance,scanonly"`
}

// Store serves similarity queries from Postgres.
type Store struct {
	db         *bun.DB
	dimensions int
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(cfg *config.DatabaseConfig) *sql.DB {
	opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
	if cfg.Password != "" {
		opts = append(opts, pgdriver.WithPassword(cfg.Password))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...))
}

// NewStore connects and makes sure the extension and table exist.
func NewStore(ctx context.Context, cfg *config.DatabaseConfig) (*Store, error) {
	db := NewDB(ConnectDB(cfg), cfg.Debug)
	s := &Store{db: db, dimensions: cfg.Dimensions}
	if err := s.InitDB(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) InitDB(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	// bun cannot size the vector column from a struct tag, so the DDL is written out
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS professor_reviews (
	professor   text PRIMARY KEY,
	subject     text NOT NULL,
	star_rating double precision NOT NULL,
	review      text NOT NULL,
	embedding   vector(%d) NOT NULL
)`, s.dimensions))
	if err != nil {
		return fmt.Errorf("create professor_reviews: %w", err)
	}
	return nil
}

// Upsert inserts reviews, replacing rows for professors that already exist.
func (s *Store) Upsert(ctx context.Context, records []models.ReviewEmbedding) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]Review, len(records))
	for i, r := range records {
		rows[i] = Review{
			Professor:  r.Professor,
			Subject:    r.Subject,
			StarRating: r.Stars,
			Review:     r.Review,
			Embedding:  pgvector.NewVector(r.Embedding),
		}
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		ExcludeColumn("distance").
		On("CONFLICT (professor) DO UPDATE").
		Set("subject = EXCLUDED.subject").
		Set("star_rating = EXCLUDED.star_rating").
		Set("review = EXCLUDED.review").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	return err
}

// Query orders rows by cosine distance to vector.
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]models.RetrievedMatch, error) {
	var rows []Review
	if err := s.searchQuery(&rows, vector, topK).Scan(ctx); err != nil {
		return nil, fmt.Errorf("search professor_reviews: %w", err)
	}
	return toMatches(rows), nil
}

func (s *Store) searchQuery(rows *[]Review, vector []float32, topK int) *bun.SelectQuery {
	return s.db.NewSelect().
		Model(rows).
		Column("professor", "subject", "star_rating", "review").
		ColumnExpr("embedding <=> ? AS distance", pgvector.NewVector(vector)).
		OrderExpr("distance").
		Limit(topK)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DropReviews removes the table entirely.
func (s *Store) DropReviews(ctx context.Context) error {
	_, err := s.dropQuery().Exec(ctx)
	return err
}

func (s *Store) dropQuery() *bun.DropTableQuery {
	return s.db.NewDropTable().Model((*Review)(nil)).IfExists()
}

// Reset drops the table and recreates it empty, picking up the configured dimensions.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.DropReviews(ctx); err != nil {
		return fmt.Errorf("drop professor_reviews: %w", err)
	}
	return s.InitDB(ctx)
}

func toMatches(rows []Review) []models.RetrievedMatch {
	matches := make([]models.RetrievedMatch, 0, len(rows))
	for _, r := range rows {
		matches = append(matches, models.RetrievedMatch{
			Professor:  r.Professor,
			Subject:    r.Subject,
			StarRating: r.StarRating,
			Review:     r.Review,
			Score:      float32(1 - r.Distance),
		})
	}
	return matches
}
