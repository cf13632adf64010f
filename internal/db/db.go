package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

// Point is one chunk row in the doc_chunks table
type Point struct {
	bun.BaseModel `bun:"table:doc_chunks,alias:dc"`

	ID         string          `bun:"id,pk"`
	DocumentID string          `bun:"document_id,notnull"`
	ChunkIndex int             `bun:"chunk_index,notnull"`
	Text       string          `bun:"text,notnull"`
	Embedding  pgvector.Vector `bun:"embedding,notnull,type:vector"`
	Distance   float64         `bun:"distance,scanonly"`
}

// PointStore keeps vector points in PostgreSQL with the pgvector extension
type PointStore struct {
	db         *bun.DB
	vectorSize int
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with bun's pgdriver or with lib/pq
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case config.DriverPq:
		sqldb, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return sqldb, nil
	case config.DriverPgdriver, "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// NewPointStore connects and makes sure the extension, table and index exist
func NewPointStore(ctx context.Context, cfg *config.DatabaseConfig, vectorSize int) (*PointStore, error) {
	sqldb, err := ConnectDB(cfg)
	if err != nil {
		return nil, err
	}
	s := &PointStore{db: NewDB(sqldb, cfg.Debug), vectorSize: vectorSize}
	if err := s.InitDB(ctx); err != nil {
		s.db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PointStore) InitDB(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err := s.db.NewCreateTable().
		Model((*Point)(nil)).
		IfNotExists().
		ColumnExpr("CHECK (vector_dims(embedding) = ?)", s.vectorSize).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	_, err = s.db.NewCreateIndex().
		Model((*Point)(nil)).
		Index("doc_chunks_document_id_idx").
		IfNotExists().
		Column("document_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Upsert inserts the points, replacing rows with the same id
func (s *PointStore) Upsert(ctx context.Context, points []models.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	rows := make([]Point, len(points))
	for i, p := range points {
		if len(p.Vector) != s.vectorSize {
			return fmt.Errorf("vector dimension error: got %d, expected %d", len(p.Vector), s.vectorSize)
		}
		rows[i] = Point{
			ID:         p.ID,
			DocumentID: p.DocumentID,
			ChunkIndex: p.ChunkIndex,
			Text:       p.Text,
			Embedding:  pgvector.NewVector(p.Vector),
		}
	}

	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("document_id = EXCLUDED.document_id").
		Set("chunk_index = EXCLUDED.chunk_index").
		Set("text = EXCLUDED.text").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	log.Debug().Int("points", len(points)).Msg("Upserted points")
	return nil
}

// Search orders by cosine distance, restricted to documentID when set
func (s *PointStore) Search(ctx context.Context, vector []float32, documentID string, topK int) ([]models.ScoredPoint, error) {
	if len(vector) == 0 {
		return nil, errors.New("query embedding must be provided")
	}

	query := pgvector.NewVector(vector)
	var rows []Point
	q := s.db.NewSelect().
		Model(&rows).
		Column("id", "document_id", "chunk_index", "text", "embedding").
		ColumnExpr("embedding <=> ? AS distance", query).
		OrderExpr("embedding <=> ?", query).
		Limit(topK)
	if documentID != "" {
		q = q.Where("document_id = ?", documentID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	points := make([]models.ScoredPoint, len(rows))
	for i, r := range rows {
		points[i] = models.ScoredPoint{
			VectorPoint: models.VectorPoint{
				ID:         r.ID,
				Vector:     r.Embedding.Slice(),
				Text:       r.Text,
				DocumentID: r.DocumentID,
				ChunkIndex: r.ChunkIndex,
			},
			Similarity: float32(1 - r.Distance),
		}
	}
	return points, nil
}

func (s *PointStore) Count(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*Point)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return n, nil
}

// Reset drops and recreates doc_chunks
func (s *PointStore) Reset(ctx context.Context) error {
	if _, err := s.db.NewDropTable().Model((*Point)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}
	return s.InitDB(ctx)
}

func (s *PointStore) Close() error {
	return s.db.Close()
}
