package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"document-qa/internal/config"
	"document-qa/internal/helper"
	"document-qa/internal/models"
	"document-qa/internal/parser"
	"document-qa/internal/session"
)

// VectorStore is the external vector index
type VectorStore interface {
	Upsert(ctx context.Context, points []models.VectorPoint) error
	Search(ctx context.Context, vector []float32, documentID string, topK int) ([]models.ScoredPoint, error)
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
	Close() error
}

type Embedder interface {
	EmbedChunks(ctx context.Context, chunks []models.Chunk) ([][]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type RAG struct {
	store     VectorStore
	embedder  Embedder
	generator Generator
	session   *session.Session
	cfg       config.RAGConfig
}

type IngestResult struct {
	Document models.DocumentRecord
	Skipped  bool
}

func NewRAG(store VectorStore, embedder Embedder, generator Generator, sess *session.Session, cfg config.RAGConfig) *RAG {
	return &RAG{store: store, embedder: embedder, generator: generator, session: sess, cfg: cfg}
}

// Ingest extracts, chunks, embeds and stores the document at filePath under name.
// A document already registered under the same name is not ingested again; it
// only becomes the current document.
func (r *RAG) Ingest(ctx context.Context, filePath, name string) (*IngestResult, error) {
	if existing, ok := r.session.FindByName(name); ok {
		log.Warn().Str("document", name).Str("id", existing.ID).Msg("Document already exists in the knowledge base, skipping upload")
		r.session.SetCurrent(existing.ID)
		return &IngestResult{Document: existing, Skipped: true}, nil
	}

	text, err := parser.ExtractText(filePath)
	if err != nil {
		return nil, err
	}

	chunks := parser.ChunkText(text, r.cfg.MaxTokens)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s: %w", name, models.ErrEmptyDocument)
	}

	vectors, err := r.embedder.EmbedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	documentID, err := helper.GenerateDocumentID()
	if err != nil {
		return nil, err
	}

	points := make([]models.VectorPoint, len(chunks))
	for i, c := range chunks {
		id, err := helper.GenerateUUID()
		if err != nil {
			return nil, err
		}
		points[i] = models.VectorPoint{
			ID:         id,
			Vector:     vectors[i],
			Text:       c.Content,
			DocumentID: documentID,
			ChunkIndex: c.Index,
		}
	}

	if err := r.store.Upsert(ctx, points); err != nil {
		return nil, err
	}
	log.Info().Str("document", name).Str("id", documentID).Int("chunks", len(points)).Msg("Uploaded chunks")

	doc := models.DocumentRecord{ID: documentID, Name: name, Chunks: chunks}
	r.session.Add(doc)
	return &IngestResult{Document: doc}, nil
}

// Query answers question from the chunks of the current document
func (r *RAG) Query(ctx context.Context, question string) (*models.PromptResponse, error) {
	if len(r.session.Documents) == 0 {
		return nil, models.ErrNoDocuments
	}
	doc, ok := r.session.Current()
	if !ok {
		return nil, models.ErrNoDocuments
	}

	queryEmbedding, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}

	hits, err := r.store.Search(ctx, queryEmbedding, doc.ID, r.cfg.TopK)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("document", doc.Name).Int("hits", len(hits)).Msg("Retrieved chunks")

	response := &models.PromptResponse{Query: question, Source: doc.Name}
	if len(hits) == 0 {
		response.Content = models.NotInDocumentReply
		return response, nil
	}

	contexts := make([]string, len(hits))
	for i, h := range hits {
		contexts[i] = h.Text
	}
	response.Contexts = contexts

	prompt := BuildPrompt(contexts, question)
	answer, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	response.Content = answer
	return response, nil
}

// Reset drops every stored point
func (r *RAG) Reset(ctx context.Context) error {
	if err := r.store.Reset(ctx); err != nil {
		return err
	}
	log.Info().Msg("Vector store cleared")
	return nil
}

// BuildPrompt formats the retrieved chunks and the question into the answer prompt
func BuildPrompt(contexts []string, question string) string {
	return fmt.Sprintf(models.AnswerPromptTemplate, strings.Join(contexts, models.ContextSeparator), question)
}
