package models

// Pipeline names the question-answering flow a file is routed to
type Pipeline string

const (
	PipelineUnstructured Pipeline = "unstructured"
	PipelineStructured   Pipeline = "structured"
)

// DocumentRecord identifies an ingested unstructured document. Identity is by Name.
type DocumentRecord struct {
	ID     string  `yaml:"id" json:"id"`
	Name   string  `yaml:"name" json:"name"`
	Chunks []Chunk `yaml:"chunks" json:"chunks"`
}

// ColumnMetadata is a column name with its inferred type
type ColumnMetadata struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// TableMetadata is the grounding context handed to the generation model
type TableMetadata struct {
	TableName string           `yaml:"table_name" json:"table_name"`
	Columns   []ColumnMetadata `yaml:"columns" json:"columns"`
}
