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

	"document-qa/internal/models"
)

// VectorDBManager stores chunk vectors in a chromem-go collection
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	inMemory      bool
	compress      bool
	encryptionKey string
	path          string
	filePath      string
}

// Options configure NewVectorDBManager
type Options struct {
	Path          string
	Collection    string
	InMemory      bool
	Compress      bool
	EncryptionKey string
}

// NewVectorDBManager opens (or creates) the collection. An in-memory database
// is imported from <path>/<collection>.chromem if that export exists.
func NewVectorDBManager(opts Options) (*VectorDBManager, error) {
	var (
		db  *chromem.DB
		err error
	)
	if opts.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(opts.Path, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	m := &VectorDBManager{
		db:            db,
		inMemory:      opts.InMemory,
		compress:      opts.Compress,
		encryptionKey: opts.EncryptionKey,
		path:          opts.Path,
		filePath:      filepath.Join(opts.Path, opts.Collection+".chromem"),
	}

	if opts.InMemory && opts.Path != "" {
		if err := m.importIfExists(); err != nil {
			return nil, err
		}
	}

	if _, err := m.GetOrCreateCollection(opts.Collection); err != nil {
		return nil, err
	}
	return m, nil
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection(collectionName string) (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// Upsert adds the points, replacing any with the same id
func (m *VectorDBManager) Upsert(ctx context.Context, points []models.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		docs[i] = chromem.Document{
			ID:      p.ID,
			Content: p.Text,
			Metadata: map[string]string{
				models.PayloadDocumentID: p.DocumentID,
				models.PayloadChunkIndex: strconv.Itoa(p.ChunkIndex),
			},
			Embedding: p.Vector,
		}
	}

	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	log.Debug().Int("points", len(points)).Str("collection", m.collection.Name).Msg("Upserted points")
	return nil
}

// Search returns up to topK points nearest to vector, restricted to documentID when set
func (m *VectorDBManager) Search(ctx context.Context, vector []float32, documentID string, topK int) ([]models.ScoredPoint, error) {
	if len(vector) == 0 {
		return nil, errors.New("query embedding must be provided")
	}

	// chromem rejects nResults larger than the collection
	n := min(topK, m.collection.Count())
	if n <= 0 {
		return nil, nil
	}

	opts := chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       n,
	}
	if documentID != "" {
		opts.Where = map[string]string{models.PayloadDocumentID: documentID}
	}

	results, err := m.collection.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	points := make([]models.ScoredPoint, 0, len(results))
	for _, r := range results {
		idx, _ := strconv.Atoi(r.Metadata[models.PayloadChunkIndex])
		points = append(points, models.ScoredPoint{
			VectorPoint: models.VectorPoint{
				ID:         r.ID,
				Vector:     r.Embedding,
				Text:       r.Content,
				DocumentID: r.Metadata[models.PayloadDocumentID],
				ChunkIndex: idx,
			},
			Similarity: r.Similarity,
		})
	}
	return points, nil
}

// Count returns the number of stored points
func (m *VectorDBManager) Count(ctx context.Context) (int, error) {
	return m.collection.Count(), nil
}

// Reset deletes the collection and starts an empty one under the same name
func (m *VectorDBManager) Reset(ctx context.Context) error {
	name := m.collection.Name
	if err := m.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	_, err := m.GetOrCreateCollection(name)
	return err
}

// Close exports an in-memory database to its file. Without a path the data is dropped.
func (m *VectorDBManager) Close() error {
	if !m.inMemory || m.path == "" {
		return nil
	}
	return m.Export()
}

// export to file
func (m *VectorDBManager) Export() error {
	if m.encryptionKey == "" {
		return errors.New("encryption key is required")
	}
	if m.collection == nil {
		return errors.New("collection is required")
	}

	if err := os.MkdirAll(filepath.Dir(m.filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create export folder: %w", err)
	}

	log.Debug().Str("collection", m.collection.Name).Str("file", m.filePath).Bool("compress", m.compress).Msg("Exporting collection")
	if err := m.db.ExportToFile(m.filePath, m.compress, m.encryptionKey, m.collection.Name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

func (m *VectorDBManager) importIfExists() error {
	if _, err := os.Stat(m.filePath); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	log.Debug().Str("file", m.filePath).Msg("Importing collection")
	if err := m.db.ImportFromFile(m.filePath, m.encryptionKey); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	return nil
}
