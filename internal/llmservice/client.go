package llmservice

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"document-qa/internal/config"
	"document-qa/internal/helper"
	"document-qa/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

var thinkRe = regexp.MustCompile(models.ThinkTag)

// Generator sends single prompts to a text-generation model
type Generator struct {
	llm      llms.Model
	jsonLLM  llms.Model
	opts     []llms.CallOption
	jsonOpts []llms.CallOption
	retry    config.RetryConfig
}

// NewGenerator creates a generator for the configured provider
func NewGenerator(llmConfig *config.LLMConfig, retry config.RetryConfig) (*Generator, error) {
	log.Debug().Interface("config", map[string]string{
		"provider": llmConfig.Provider,
		"base_url": llmConfig.BaseURL,
		"model":    llmConfig.Model,
	}).Msg("Creating generator")

	var opts []llms.CallOption
	if llmConfig.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(llmConfig.Temperature))
	}

	switch llmConfig.Provider {
	case config.ProviderOpenAI:
		llm, err := newOpenAI(llmConfig)
		if err != nil {
			return nil, err
		}
		g := NewWithModel(llm, retry, opts...)
		if llmConfig.JSONMode {
			g.jsonOpts = append(g.jsonOpts, llms.WithJSONMode())
		}
		return g, nil

	case config.ProviderOllama:
		llm, err := newOllama(llmConfig)
		if err != nil {
			return nil, err
		}
		g := NewWithModel(llm, retry, opts...)
		if llmConfig.JSONMode {
			if g.jsonLLM, err = newOllama(llmConfig, ollama.WithFormat("json")); err != nil {
				return nil, err
			}
		}
		return g, nil

	default:
		return nil, fmt.Errorf("unknown inference provider %q", llmConfig.Provider)
	}
}

// NewWithModel wraps an existing model
func NewWithModel(llm llms.Model, retry config.RetryConfig, opts ...llms.CallOption) *Generator {
	return &Generator{llm: llm, jsonLLM: llm, opts: opts, retry: retry}
}

func newOpenAI(llmConfig *config.LLMConfig) (llms.Model, error) {
	key := strings.TrimPrefix(llmConfig.Key, "Bearer ")
	if key == "" {
		key = "none"
	}
	opts := []openai.Option{
		openai.WithToken(key),
		openai.WithModel(llmConfig.Model),
	}
	if llmConfig.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize openai client: %w", err)
	}
	return llm, nil
}

func newOllama(llmConfig *config.LLMConfig, extra ...ollama.Option) (llms.Model, error) {
	opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
	if llmConfig.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
	}
	opts = append(opts, extra...)

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
	}
	return llm, nil
}

// Generate returns the model's reply to prompt, trimmed and without <think> blocks
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, g.llm, prompt, g.opts)
}

// GenerateJSON is Generate with JSON output requested when the provider supports it
func (g *Generator) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	opts := append(append([]llms.CallOption{}, g.opts...), g.jsonOpts...)
	return g.generate(ctx, g.jsonLLM, prompt, opts)
}

func (g *Generator) generate(ctx context.Context, llm llms.Model, prompt string, opts []llms.CallOption) (string, error) {
	log.Debug().Int("prompt_chars", len(prompt)).Msg("Generating content")

	text, err := helper.Retry(ctx, g.retry, "generate", func() (string, error) {
		return llms.GenerateFromSinglePrompt(ctx, llm, prompt, opts...)
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return strings.TrimSpace(thinkRe.ReplaceAllString(text, "")), nil
}
