package router

import (
	"fmt"
	"path/filepath"
	"strings"

	"document-qa/internal/models"
)

var pipelines = map[string]models.Pipeline{
	".pdf":  models.PipelineUnstructured,
	".docx": models.PipelineUnstructured,
	".pptx": models.PipelineUnstructured,
	".txt":  models.PipelineUnstructured,
	".md":   models.PipelineUnstructured,
	".csv":  models.PipelineStructured,
	".xlsx": models.PipelineStructured,
}

// Route picks the pipeline for a file by its extension
func Route(filename string) (models.Pipeline, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	p, ok := pipelines[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", models.ErrUnsupportedFileType, ext)
	}
	return p, nil
}

// SupportedExtensions lists the extensions Route accepts
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".pptx", ".txt", ".md", ".csv", ".xlsx"}
}
