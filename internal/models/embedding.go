package models

// Chunk represents a bounded fragment of a source document
type Chunk struct {
	Content string `yaml:"content" json:"content"`
	Index   int    `yaml:"index" json:"index"`
}

// VectorPoint is one chunk as stored in the vector index
type VectorPoint struct {
	ID         string
	Vector     []float32
	Text       string
	DocumentID string
	ChunkIndex int
}

// ScoredPoint is a search hit, most similar first
type ScoredPoint struct {
	VectorPoint
	Similarity float32
}

type PromptResponse struct {
	Query    string
	Source   string
	Content  string
	Contexts []string
}
