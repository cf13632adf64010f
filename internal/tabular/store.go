package tabular

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"

	"document-qa/internal/helper"
	"document-qa/internal/models"
)

// Store is the local SQLite database holding uploaded tables
type Store struct {
	db *bun.DB
}

// ExecResult is the outcome of one statement. Error holds the text of a
// failed statement; the statement itself never fails the call.
type ExecResult struct {
	Query   string
	Columns []string
	Rows    [][]any
	Message string
	Error   string
}

// Records returns the rows keyed by column name
func (r *ExecResult) Records() []map[string]any {
	records := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		rec := make(map[string]any, len(r.Columns))
		for j, col := range r.Columns {
			rec[col] = row[j]
		}
		records[i] = rec
	}
	return records
}

// OpenStore opens (or creates) the database file at path
func OpenStore(path string, debug bool) (*Store, error) {
	if err := helper.CreateFolder(filepath.Dir(path)); err != nil {
		return nil, err
	}
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ReplaceTable drops the table if it exists, recreates it from the metadata and
// inserts every row, all in one transaction.
func (s *Store) ReplaceTable(ctx context.Context, t *Table, md models.TableMetadata) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS ?", bun.Ident(t.Name)); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}

		defs := make([]string, len(md.Columns))
		for i, c := range md.Columns {
			defs[i] = quoteIdent(c.Name) + " " + sqlType(c.Type)
		}
		if _, err := tx.ExecContext(ctx, "CREATE TABLE ? (?)", bun.Ident(t.Name), bun.Safe(strings.Join(defs, ", "))); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}

		for n, row := range t.Rows {
			values := make(map[string]interface{}, len(md.Columns))
			for i, c := range md.Columns {
				values[c.Name] = convert(row[i], c.Type)
			}
			if _, err := tx.NewInsert().Model(&values).TableExpr("?", bun.Ident(t.Name)).Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert row %d: %w", n+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("table", t.Name).Int("rows", len(t.Rows)).Msg("Table replaced")
	return nil
}

// Execute runs one generated statement. Row-returning statements (SELECT, WITH,
// VALUES, EXPLAIN) return their rows; anything else reports the affected row count.
func (s *Store) Execute(ctx context.Context, query string) (*ExecResult, error) {
	query = strings.TrimSpace(query)
	res := &ExecResult{Query: query}
	log.Debug().Str("sql", query).Msg("Executing query")

	if !isQuery(query) {
		// query text comes from the model and is run as is
		r, err := s.db.DB.ExecContext(ctx, query)
		if err != nil {
			res.Error = "SQL Execution Error: " + err.Error()
			return res, nil
		}
		res.Message = affectedMessage(r)
		return res, nil
	}

	rows, err := s.db.DB.QueryContext(ctx, query)
	if err != nil {
		res.Error = "SQL Execution Error: " + err.Error()
		return res, nil
	}
	defer rows.Close()

	if res.Columns, err = rows.Columns(); err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	for rows.Next() {
		cells := make([]any, len(res.Columns))
		ptrs := make([]any, len(cells))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, c := range cells {
			if b, ok := c.([]byte); ok {
				cells[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		res.Error = "SQL Execution Error: " + err.Error()
		res.Rows = nil
	}
	return res, nil
}

// affectedMessage leaves the count out when the driver cannot report it
func affectedMessage(r sql.Result) string {
	n, err := r.RowsAffected()
	if err != nil {
		log.Debug().Err(err).Msg("Rows affected unavailable")
		return "Query executed successfully."
	}
	return fmt.Sprintf("Query executed successfully. %d row(s) affected.", n)
}

func isQuery(query string) bool {
	fields := strings.Fields(stripLeading(query))
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "VALUES", "EXPLAIN":
		return true
	}
	return false
}

// stripLeading drops whitespace, comments and opening parentheses ahead of
// the first keyword.
func stripLeading(query string) string {
	for {
		query = strings.TrimLeft(query, " \t\r\n(")
		switch {
		case strings.HasPrefix(query, "--"):
			i := strings.IndexByte(query, '\n')
			if i < 0 {
				return ""
			}
			query = query[i+1:]
		case strings.HasPrefix(query, "/*"):
			i := strings.Index(query[2:], "*/")
			if i < 0 {
				return ""
			}
			query = query[i+4:]
		default:
			return query
		}
	}
}

func sqlType(t string) string {
	switch t {
	case TypeInt, TypeBool:
		return "INTEGER"
	case TypeFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

// convert turns a cell into the value stored for the column type; empty cells are NULL
func convert(v, typ string) interface{} {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	switch typ {
	case TypeInt:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case TypeFloat:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	case TypeBool:
		if b, ok := parseBool(v); ok {
			if b {
				return int64(1)
			}
			return int64(0)
		}
	}
	return v
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
