package models

import "errors"

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyDocument       = errors.New("no text could be extracted from the document")
	ErrNoDocuments         = errors.New("please upload a document first")
	ErrNoTable             = errors.New("please upload a CSV or XLSX file first")
	ErrEmbeddingMismatch   = errors.New("embedding count does not match chunk count")

	// query routing
	ErrUnparsableResponse = errors.New("error parsing LLM response")
	ErrUnknownFunction    = errors.New("unknown function name in LLM response")
)
