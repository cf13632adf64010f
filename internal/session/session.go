package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"document-qa/internal/models"
)

// Session is the state shared by consecutive interactions: the uploaded
// documents, which of them is queried, and the current table.
type Session struct {
	Pipeline          models.Pipeline         `yaml:"pipeline,omitempty"`
	CurrentDocumentID string                  `yaml:"current_document_id,omitempty"`
	Documents         []models.DocumentRecord `yaml:"documents,omitempty"`
	Table             *models.TableMetadata   `yaml:"table,omitempty"`

	path string
}

// New returns an empty session that is not persisted
func New() *Session {
	return &Session{}
}

// Load reads the session file; a missing file gives an empty session saved to that path
func Load(path string) (*Session, error) {
	s := &Session{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse session %s: %w", path, err)
	}

	log.Debug().Str("file", path).Int("documents", len(s.Documents)).Msg("Loaded session")
	return s, nil
}

// Save writes the session back to its file. Sessions without a file are kept in memory only.
func (s *Session) Save() error {
	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create session folder: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session %s: %w", s.path, err)
	}
	return nil
}

func (s *Session) FindByName(name string) (models.DocumentRecord, bool) {
	for _, d := range s.Documents {
		if d.Name == name {
			return d, true
		}
	}
	return models.DocumentRecord{}, false
}

func (s *Session) FindByID(id string) (models.DocumentRecord, bool) {
	for _, d := range s.Documents {
		if d.ID == id {
			return d, true
		}
	}
	return models.DocumentRecord{}, false
}

// Add registers a document and makes it current
func (s *Session) Add(doc models.DocumentRecord) {
	s.Documents = append(s.Documents, doc)
	s.CurrentDocumentID = doc.ID
}

func (s *Session) SetCurrent(id string) {
	s.CurrentDocumentID = id
}

// Current returns the document queries are scoped to
func (s *Session) Current() (models.DocumentRecord, bool) {
	if s.CurrentDocumentID == "" {
		return models.DocumentRecord{}, false
	}
	return s.FindByID(s.CurrentDocumentID)
}

// Clear forgets every document and the current table
func (s *Session) Clear() {
	s.Pipeline = ""
	s.CurrentDocumentID = ""
	s.Documents = nil
	s.Table = nil
}
