package tabular

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"

	"document-qa/internal/helper"
)

const exportSheet = "Result"

// ExportXLSX writes the columns and rows of a query result to a workbook at path
func ExportXLSX(res *ExecResult, path string) error {
	if res == nil || len(res.Columns) == 0 {
		return errors.New("nothing to export")
	}
	if err := helper.CreateFolder(filepath.Dir(path)); err != nil {
		return err
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(exportSheet)
	if err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, c := range res.Columns {
		header.AddCell().SetString(c)
	}
	for _, r := range res.Rows {
		row := sheet.AddRow()
		for _, v := range r {
			cell := row.AddCell()
			if v == nil {
				continue
			}
			cell.SetValue(v)
		}
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	log.Info().Str("file", path).Int("rows", len(res.Rows)).Msg("Exported result")
	return nil
}
