package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinChunks(t *testing.T, text string, maxTokens int) string {
	t.Helper()
	var parts []string
	for _, c := range ChunkText(text, maxTokens) {
		parts = append(parts, c.Content)
	}
	return strings.Join(parts, " ")
}

func TestChunkTextShortInputIsSingleChunk(t *testing.T) {
	text := "  The quick brown fox. It jumps over the lazy dog.  "

	chunks := ChunkText(text, 50)
	require.Len(t, chunks, 1)
	assert.Equal(t, strings.TrimSpace(text), chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Index)
}

func TestChunkTextEmpty(t *testing.T) {
	assert.Empty(t, ChunkText("", 10))
	assert.Empty(t, ChunkText(" \n\t ", 10))
}

func TestChunkTextRespectsCeiling(t *testing.T) {
	text := "One two three. Four five six. Seven eight nine. Ten eleven twelve"

	chunks := ChunkText(text, 6)
	require.Len(t, chunks, 2)
	assert.Equal(t, "One two three. Four five six.", chunks[0].Content)
	assert.Equal(t, "Seven eight nine. Ten eleven twelve", chunks[1].Content)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, countTokens(c.Content), 6)
	}
}

func TestChunkTextOversizedSentence(t *testing.T) {
	long := strings.TrimSpace(strings.Repeat("word ", 12))
	text := "Short one. " + long + ". Tail here"

	chunks := ChunkText(text, 5)
	require.Len(t, chunks, 3)
	assert.Equal(t, "Short one.", chunks[0].Content)
	assert.Equal(t, long+".", chunks[1].Content)
	assert.Equal(t, "Tail here", chunks[2].Content)
}

func TestChunkTextFirstSentenceOversizedHasNoEmptyChunk(t *testing.T) {
	text := strings.Repeat("a ", 20) + ". b c"

	for _, c := range ChunkText(text, 3) {
		assert.NotEmpty(t, strings.TrimSpace(c.Content))
	}
}

func TestChunkTextReconstruction(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		maxTokens int
	}{
		{name: "plain sentences", text: "Alpha beta. Gamma delta epsilon. Zeta eta theta iota. Kappa.", maxTokens: 4},
		{name: "irregular whitespace", text: "Alpha   beta.  Gamma\ndelta.   Epsilon zeta.\tEta", maxTokens: 3},
		{name: "consecutive separators", text: "A. . B. C D E. F", maxTokens: 2},
		{name: "trailing period", text: "First sentence here. Second one here.", maxTokens: 3},
		{name: "no separators", text: strings.Repeat("token ", 40), maxTokens: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := joinChunks(t, tt.text, tt.maxTokens)
			assert.Equal(t, strings.Fields(tt.text), strings.Fields(got))
		})
	}
}

func TestChunkTextIdempotent(t *testing.T) {
	text := "The first sentence has five words. The second sentence also has some words. " +
		"Then a third one. And a fourth sentence to close it off"

	for _, c := range ChunkText(text, 8) {
		again := ChunkText(c.Content, 8)
		require.Len(t, again, 1)
		assert.Equal(t, c.Content, again[0].Content)
	}
}

func TestChunkTextDefaultCeiling(t *testing.T) {
	text := strings.Repeat("word ", DefaultMaxTokens) + ". " + strings.Repeat("more ", 10)

	assert.Len(t, ChunkText(text, 0), 2)
	assert.Len(t, ChunkText(text, -1), 2)
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t, []string{"A.", "B.", "C"}, splitSentences("A. B. C"))
	assert.Equal(t, []string{"A.", "B."}, splitSentences("A. B."))
	assert.Equal(t, []string{"A.", ".", "B"}, splitSentences("A. . B"))
}
