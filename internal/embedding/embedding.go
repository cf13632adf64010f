package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"document-qa/internal/config"
	"document-qa/internal/helper"
	"document-qa/internal/models"
)

// Service embeds chunks and queries through a langchaingo embedder
type Service struct {
	embedder embeddings.Embedder
	retry    config.RetryConfig
}

// NewService wraps an existing embedder
func NewService(embedder embeddings.Embedder, retry config.RetryConfig) *Service {
	return &Service{embedder: embedder, retry: retry}
}

// NewEmbedder creates the embedder for the configured provider
func NewEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        llmConfig.Provider,
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Creating embedder")

	switch llmConfig.Provider {
	case config.ProviderOllama:
		return newOllamaEmbedder(llmConfig)
	case config.ProviderOpenAI:
		return newOpenAIEmbedder(llmConfig)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", llmConfig.Provider)
	}
}

func newOpenAIEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	opts := []openai.Option{
		openai.WithToken(tokenOrNone(llmConfig.Key)),
		openai.WithEmbeddingModel(llmConfig.Model),
	}
	if llmConfig.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

func newOllamaEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
	if llmConfig.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
	}

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// EmbedChunks returns one vector per chunk, in chunk order
func (s *Service) EmbedChunks(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		log.Info().Msg("No chunks to embed")
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := helper.Retry(ctx, s.retry, "embed_documents", func() ([][]float32, error) {
		return s.embedder.EmbedDocuments(ctx, texts)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: %d vectors for %d chunks", models.ErrEmbeddingMismatch, len(vectors), len(chunks))
	}

	log.Debug().Int("chunks", len(chunks)).Int("dimensions", len(vectors[0])).Msg("Generated embeddings")
	return vectors, nil
}

// EmbedQuery embeds a single question
func (s *Service) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vector, err := helper.Retry(ctx, s.retry, "embed_query", func() ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return vector, nil
}

// local OpenAI-compatible servers accept any token
func tokenOrNone(key string) string {
	key = strings.TrimPrefix(key, "Bearer ")
	if key == "" {
		return "none"
	}
	return key
}
