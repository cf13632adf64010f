package assistant

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
	"document-qa/internal/nlsql"
	"document-qa/internal/rag"
	"document-qa/internal/router"
	"document-qa/internal/session"
	"document-qa/internal/tabular"
)

// Tables is the relational store behind the structured pipeline
type Tables interface {
	ReplaceTable(ctx context.Context, t *tabular.Table, md models.TableMetadata) error
	Execute(ctx context.Context, query string) (*tabular.ExecResult, error)
}

// Assistant sends uploads and questions to the pipeline chosen by file type
type Assistant struct {
	rag     *rag.RAG
	tables  Tables
	router  *nlsql.Router
	session *session.Session
}

type UploadResult struct {
	Pipeline models.Pipeline
	Document *models.DocumentRecord
	Skipped  bool
	Table    *models.TableMetadata
	Rows     int
}

// Answer is the reply to one question. FunctionName, SQL and Result are only
// set by the structured pipeline; Source and Contexts only by the unstructured one.
type Answer struct {
	Pipeline     models.Pipeline
	Text         string
	FunctionName string
	SQL          string
	Result       *tabular.ExecResult
	Source       string
	Contexts     []string
}

func New(r *rag.RAG, tables Tables, nl *nlsql.Router, sess *session.Session) *Assistant {
	return &Assistant{rag: r, tables: tables, router: nl, session: sess}
}

// Upload ingests the file at path under name (the base file name when empty)
func (a *Assistant) Upload(ctx context.Context, path, name string) (*UploadResult, error) {
	if name == "" {
		name = filepath.Base(path)
	}
	pipeline, err := router.Route(name)
	if err != nil {
		return nil, err
	}
	log.Info().Str("file", name).Str("pipeline", string(pipeline)).Msg("Routing upload")

	res := &UploadResult{Pipeline: pipeline}
	switch pipeline {
	case models.PipelineUnstructured:
		ing, err := a.rag.Ingest(ctx, path, name)
		if err != nil {
			return nil, err
		}
		res.Document = &ing.Document
		res.Skipped = ing.Skipped

	case models.PipelineStructured:
		table, err := tabular.LoadFile(path, tabular.TableNameFor(name))
		if err != nil {
			return nil, err
		}
		md := tabular.InferMetadata(table)
		if err := a.tables.ReplaceTable(ctx, table, md); err != nil {
			return nil, err
		}
		a.session.Table = &md
		res.Table = &md
		res.Rows = len(table.Rows)
	}

	a.session.Pipeline = pipeline
	if err := a.session.Save(); err != nil {
		return nil, err
	}
	return res, nil
}

// Ask answers question with the pipeline of the last upload
func (a *Assistant) Ask(ctx context.Context, question string) (*Answer, error) {
	switch a.session.Pipeline {
	case models.PipelineUnstructured:
		return a.askDocument(ctx, question)
	case models.PipelineStructured:
		return a.askTable(ctx, question)
	default:
		return nil, models.ErrNoDocuments
	}
}

func (a *Assistant) askDocument(ctx context.Context, question string) (*Answer, error) {
	resp, err := a.rag.Query(ctx, question)
	if err != nil {
		return nil, err
	}
	return &Answer{
		Pipeline: models.PipelineUnstructured,
		Text:     resp.Content,
		Source:   resp.Source,
		Contexts: resp.Contexts,
	}, nil
}

func (a *Assistant) askTable(ctx context.Context, question string) (*Answer, error) {
	if a.session.Table == nil {
		return nil, models.ErrNoTable
	}

	d, err := a.router.Route(ctx, question, *a.session.Table)
	if err != nil {
		return nil, err
	}

	ans := &Answer{Pipeline: models.PipelineStructured, FunctionName: d.FunctionCall.Name}
	if !d.IsSQL() {
		ans.Text = d.FunctionCall.Arguments.Query
		return ans, nil
	}

	ans.SQL = d.FunctionCall.Arguments.Query
	res, err := a.tables.Execute(ctx, ans.SQL)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	ans.Result = res

	switch {
	case res.Error != "":
		ans.Text = res.Error
	case res.Message != "":
		ans.Text = res.Message
	default:
		ans.Text = a.router.FormatResult(ctx, question, ans.SQL, res.Records())
	}
	return ans, nil
}

// Documents lists the registered unstructured documents in upload order
func (a *Assistant) Documents() []models.DocumentRecord {
	return a.session.Documents
}

// Current returns the document questions are scoped to
func (a *Assistant) Current() (models.DocumentRecord, bool) {
	return a.session.Current()
}

// Reset empties the vector store and forgets every uploaded document
func (a *Assistant) Reset(ctx context.Context) error {
	if err := a.rag.Reset(ctx); err != nil {
		return err
	}
	a.session.Clear()
	return a.session.Save()
}
