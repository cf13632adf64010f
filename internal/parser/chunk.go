package parser

import (
	"strings"

	"document-qa/internal/models"
)

// DefaultMaxTokens is the chunk ceiling used when none is configured
const DefaultMaxTokens = 300

// ChunkText splits text on sentence boundaries into chunks of at most maxTokens
// whitespace-separated tokens. A sentence is never split, so a sentence longer
// than the ceiling becomes a chunk of its own. Chunks are never empty and
// joining them with a space gives back the input modulo whitespace.
func ChunkText(text string, maxTokens int) []models.Chunk {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if countTokens(text) <= maxTokens {
		return []models.Chunk{{Content: text, Index: 0}}
	}

	var (
		chunks        []models.Chunk
		current       []string
		currentTokens int
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, models.Chunk{
			Content: strings.Join(current, " "),
			Index:   len(chunks),
		})
		current = current[:0]
		currentTokens = 0
	}

	for _, sentence := range splitSentences(text) {
		n := countTokens(sentence)
		if len(current) > 0 && currentTokens+n > maxTokens {
			flush()
		}
		current = append(current, sentence)
		currentTokens += n
	}
	flush()

	return chunks
}

// splitSentences splits on ". " and keeps the period on every sentence but the last
func splitSentences(text string) []string {
	parts := strings.Split(text, models.SentenceSeparator)
	sentences := make([]string, 0, len(parts))
	for i, part := range parts {
		if i < len(parts)-1 {
			part += "."
		}
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sentences = append(sentences, part)
	}
	return sentences
}

func countTokens(s string) int {
	return len(strings.Fields(s))
}
