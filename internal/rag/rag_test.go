package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-qa/internal/chromemdb"
	"document-qa/internal/config"
	"document-qa/internal/models"
	"document-qa/internal/session"
)

// keywordEmbedder maps text onto three axes: cats, dogs, anything else
type keywordEmbedder struct {
	calls int
	err   error
}

func (e *keywordEmbedder) vector(text string) []float32 {
	text = strings.ToLower(text)
	v := []float32{0.01, 0.01, 0.01}
	if strings.Contains(text, "cat") {
		v[0] = 1
	}
	if strings.Contains(text, "dog") {
		v[1] = 1
	}
	if v[0] < 1 && v[1] < 1 {
		v[2] = 1
	}
	return v
}

func (e *keywordEmbedder) EmbedChunks(_ context.Context, chunks []models.Chunk) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(chunks))
	for i, c := range chunks {
		out[i] = e.vector(c.Content)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedQuery(_ context.Context, q string) ([]float32, error) {
	return e.vector(q), nil
}

type recordingGenerator struct {
	prompts []string
	reply   string
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.reply, nil
}

type fixture struct {
	rag      *RAG
	store    *chromemdb.VectorDBManager
	embedder *keywordEmbedder
	gen      *recordingGenerator
	sess     *session.Session
}

func newFixture(t *testing.T, maxTokens int) *fixture {
	t.Helper()
	store, err := chromemdb.NewVectorDBManager(chromemdb.Options{Collection: "doc_chunks", InMemory: true})
	require.NoError(t, err)

	f := &fixture{
		store:    store,
		embedder: &keywordEmbedder{},
		gen:      &recordingGenerator{reply: "The cat sleeps all day."},
		sess:     session.New(),
	}
	f.rag = NewRAG(store, f.embedder, f.gen, f.sess, config.RAGConfig{MaxTokens: maxTokens, TopK: 5})
	return f
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestStoresChunks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)

	path := writeFile(t, "pets.txt", "The cat sleeps all day. The dog barks at night. Fish swim in the bowl.")
	res, err := f.rag.Ingest(ctx, path, "pets.txt")
	require.NoError(t, err)

	assert.False(t, res.Skipped)
	assert.Equal(t, "pets.txt", res.Document.Name)
	assert.True(t, strings.HasPrefix(res.Document.ID, "doc_"))
	require.Len(t, res.Document.Chunks, 3)

	n, err := f.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	current, ok := f.sess.Current()
	require.True(t, ok)
	assert.Equal(t, res.Document.ID, current.ID)
}

func TestIngestSkipsDuplicateName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 300)

	first, err := f.rag.Ingest(ctx, writeFile(t, "a.txt", "The cat sleeps."), "a.txt")
	require.NoError(t, err)
	_, err = f.rag.Ingest(ctx, writeFile(t, "b.txt", "The dog barks."), "b.txt")
	require.NoError(t, err)

	again, err := f.rag.Ingest(ctx, writeFile(t, "a.txt", "Different content entirely."), "a.txt")
	require.NoError(t, err)

	assert.True(t, again.Skipped)
	assert.Equal(t, first.Document.ID, again.Document.ID)
	assert.Equal(t, 2, f.embedder.calls)
	assert.Len(t, f.sess.Documents, 2)
	assert.Equal(t, first.Document.ID, f.sess.CurrentDocumentID)

	n, err := f.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIngestEmptyDocument(t *testing.T) {
	f := newFixture(t, 300)

	_, err := f.rag.Ingest(context.Background(), writeFile(t, "empty.txt", "   \n"), "empty.txt")
	assert.ErrorIs(t, err, models.ErrEmptyDocument)
	assert.Empty(t, f.sess.Documents)
	assert.Zero(t, f.embedder.calls)
}

func TestIngestEmbeddingFailureLeavesSessionUntouched(t *testing.T) {
	f := newFixture(t, 300)
	f.embedder.err = errors.New("connection refused")

	_, err := f.rag.Ingest(context.Background(), writeFile(t, "a.txt", "The cat sleeps."), "a.txt")
	require.Error(t, err)
	assert.Empty(t, f.sess.Documents)
}

func TestQueryWithoutDocuments(t *testing.T) {
	f := newFixture(t, 300)

	_, err := f.rag.Query(context.Background(), "what does the cat do?")
	assert.ErrorIs(t, err, models.ErrNoDocuments)
	assert.Empty(t, f.gen.prompts)
}

func TestQueryScopesToCurrentDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 300)

	_, err := f.rag.Ingest(ctx, writeFile(t, "cats.txt", "The cat sleeps all day."), "cats.txt")
	require.NoError(t, err)
	_, err = f.rag.Ingest(ctx, writeFile(t, "dogs.txt", "The dog barks at night."), "dogs.txt")
	require.NoError(t, err)

	resp, err := f.rag.Query(ctx, "what does the cat do?")
	require.NoError(t, err)

	assert.Equal(t, "dogs.txt", resp.Source)
	assert.Equal(t, []string{"The dog barks at night."}, resp.Contexts)
	assert.Equal(t, "The cat sleeps all day.", resp.Content)
	require.Len(t, f.gen.prompts, 1)
	assert.Contains(t, f.gen.prompts[0], "The dog barks at night.")
	assert.NotContains(t, f.gen.prompts[0], "The cat sleeps all day.")
	assert.Contains(t, f.gen.prompts[0], "Question: what does the cat do?")
}

func TestQueryOrdersContextsBySimilarity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)

	_, err := f.rag.Ingest(ctx, writeFile(t, "pets.txt", "The dog barks at night. The cat sleeps all day. Fish swim in the bowl."), "pets.txt")
	require.NoError(t, err)

	resp, err := f.rag.Query(ctx, "tell me about the cat")
	require.NoError(t, err)
	require.Len(t, resp.Contexts, 3)
	assert.Equal(t, "The cat sleeps all day.", resp.Contexts[0])
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt([]string{"first", "second"}, "why?")
	assert.Contains(t, prompt, "\"\"\"\nfirst\n\nsecond\n\"\"\"")
	assert.Contains(t, prompt, "Question: why?")
	assert.Contains(t, prompt, models.NotInDocumentReply)
}
