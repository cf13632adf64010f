package llmservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"document-qa/internal/config"
)

type fakeModel struct {
	replies  []string
	errs     []error
	calls    int
	prompts  []string
	lastOpts llms.CallOptions
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	i := m.calls
	m.calls++

	m.lastOpts = llms.CallOptions{}
	for _, opt := range options {
		opt(&m.lastOpts)
	}
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				m.prompts = append(m.prompts, tc.Text)
			}
		}
	}

	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	reply := ""
	if i < len(m.replies) {
		reply = m.replies[i]
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: reply}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestGenerateTrimsAndStripsThinking(t *testing.T) {
	model := &fakeModel{replies: []string{"<think>\nreasoning\n</think>\n  The answer is 42.  "}}
	g := NewWithModel(model, config.RetryConfig{Attempts: 1})

	text, err := g.Generate(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", text)
	assert.Equal(t, []string{"question"}, model.prompts)
	assert.False(t, model.lastOpts.JSONMode)
}

func TestGenerateJSONUsesJSONMode(t *testing.T) {
	model := &fakeModel{replies: []string{`{"ok":true}`}}
	g := NewWithModel(model, config.RetryConfig{Attempts: 1}, llms.WithTemperature(0.2))
	g.jsonOpts = []llms.CallOption{llms.WithJSONMode()}

	text, err := g.GenerateJSON(context.Background(), "give json")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)
	assert.True(t, model.lastOpts.JSONMode)
	assert.InDelta(t, 0.2, model.lastOpts.Temperature, 1e-9)
}

func TestGenerateNoRetryByDefault(t *testing.T) {
	model := &fakeModel{errs: []error{errors.New("boom"), nil}, replies: []string{"", "late"}}
	g := NewWithModel(model, config.RetryConfig{Attempts: 1})

	_, err := g.Generate(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, model.calls)
}

func TestGenerateRetries(t *testing.T) {
	model := &fakeModel{errs: []error{errors.New("temporary"), nil}, replies: []string{"", "recovered"}}
	g := NewWithModel(model, config.RetryConfig{Attempts: 3, Delay: time.Millisecond, MaxDelay: time.Millisecond})

	text, err := g.Generate(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 2, model.calls)
}

func TestNewGeneratorUnknownProvider(t *testing.T) {
	_, err := NewGenerator(&config.LLMConfig{Provider: "gemini"}, config.RetryConfig{})
	assert.Error(t, err)
}

func TestNewGeneratorOpenAIJSONMode(t *testing.T) {
	g, err := NewGenerator(&config.LLMConfig{
		Provider: config.ProviderOpenAI,
		BaseURL:  "http://localhost:1/v1",
		Model:    "gpt-test",
		JSONMode: true,
	}, config.RetryConfig{Attempts: 1})
	require.NoError(t, err)
	assert.Len(t, g.jsonOpts, 1)
}
