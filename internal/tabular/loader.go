package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"document-qa/internal/models"
)

// column types, named the way pandas reports dtypes
const (
	TypeInt    = "int64"
	TypeFloat  = "float64"
	TypeBool   = "bool"
	TypeObject = "object"
)

// Table is a spreadsheet read into memory. Every row has len(Columns) cells;
// an empty cell is a missing value.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// TableNameFor returns the file name without directory and extension
func TableNameFor(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadFile reads a CSV file or the first sheet of an XLSX workbook. The first
// row is the header.
func LoadFile(path, tableName string) (*Table, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		records, err = readCSV(path)
	case ".xlsx":
		records, err = readXLSX(path)
	default:
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), models.ErrUnsupportedFileType)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), models.ErrEmptyDocument)
	}

	t := newTable(tableName, records[0], records[1:])
	log.Debug().Str("table", t.Name).Int("columns", len(t.Columns)).Int("rows", len(t.Rows)).Msg("Loaded table")
	return t, nil
}

func newTable(name string, header []string, rows [][]string) *Table {
	width := len(header)
	for _, r := range rows {
		width = max(width, len(r))
	}

	columns := make([]string, width)
	seen := make(map[string]int, width)
	for i := range columns {
		if i < len(header) {
			columns[i] = strings.TrimSpace(header[i])
		}
		if columns[i] == "" {
			columns[i] = fmt.Sprintf("column_%d", i+1)
		}
		// repeated names get a .N suffix
		if n := seen[columns[i]]; n > 0 {
			seen[columns[i]]++
			columns[i] = fmt.Sprintf("%s.%d", columns[i], n)
		} else {
			seen[columns[i]] = 1
		}
	}

	t := &Table{Name: name, Columns: columns, Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		if isBlank(r) {
			continue
		}
		row := make([]string, width)
		copy(row, r)
		t.Rows = append(t.Rows, row)
	}
	return t
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv %s: %w", path, err)
		}
		records = append(records, rec)
	}
	// a UTF-8 BOM ends up in the first header cell
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}
	return records, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// InferMetadata reports each column with the narrowest type that holds every value:
// int64, float64 (missing values allowed), bool, otherwise object.
func InferMetadata(t *Table) models.TableMetadata {
	md := models.TableMetadata{TableName: t.Name, Columns: make([]models.ColumnMetadata, len(t.Columns))}
	for i, name := range t.Columns {
		md.Columns[i] = models.ColumnMetadata{Name: name, Type: inferColumn(t, i)}
	}
	return md
}

func inferColumn(t *Table, col int) string {
	if len(t.Rows) == 0 {
		return TypeObject
	}

	var missing, ints, floats, bools int
	for _, row := range t.Rows {
		v := strings.TrimSpace(row[col])
		if v == "" {
			missing++
			continue
		}
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			ints++
			floats++
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			floats++
			continue
		}
		if _, ok := parseBool(v); ok {
			bools++
		}
	}

	present := len(t.Rows) - missing
	switch {
	case present == 0:
		return TypeFloat
	case ints == present && missing == 0:
		return TypeInt
	case floats == present:
		return TypeFloat
	case bools == present && missing == 0:
		return TypeBool
	default:
		return TypeObject
	}
}

func parseBool(v string) (bool, bool) {
	switch v {
	case "True", "true", "TRUE":
		return true, true
	case "False", "false", "FALSE":
		return false, true
	}
	return false, false
}
