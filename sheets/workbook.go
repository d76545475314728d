package sheets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/CMPEQ0/lab-mark-api/apperr"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// Workbook is a Backend over a local .xlsx file.
type Workbook struct {
	path string
	mu   *sync.Mutex
}

// WorkbookOpener serves spreadsheets stored as <id>.xlsx under dir.
// All workbooks opened through it share one lock.
func WorkbookOpener(dir string) Opener {
	var mu sync.Mutex
	return func(ctx context.Context, spreadsheetID string) (Backend, error) {
		path := filepath.Join(dir, filepath.Base(spreadsheetID)+".xlsx")
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil, apperr.NotFound("spreadsheet %s not found", spreadsheetID)
			}
			return nil, apperr.Upstream(err, "failed to open spreadsheet %s", spreadsheetID)
		}
		return &Workbook{path: path, mu: &mu}, nil
	}
}

func (w *Workbook) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to open workbook %s", filepath.Base(w.path))
	}
	return f, nil
}

func closeWorkbook(f *excelize.File) {
	if err := f.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing workbook")
	}
}

func (w *Workbook) SheetNames(ctx context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open()
	if err != nil {
		return nil, err
	}
	defer closeWorkbook(f)

	return f.GetSheetList(), nil
}

func (w *Workbook) ReadRange(ctx context.Context, sheet, rng string) ([][]string, error) {
	r, err := ParseRange(rng)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open()
	if err != nil {
		return nil, err
	}
	defer closeWorkbook(f)

	if err := requireSheet(f, sheet); err != nil {
		return nil, err
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to read rows from sheet %s", sheet)
	}
	return r.Extract(rows), nil
}

func (w *Workbook) WriteRange(ctx context.Context, sheet, rng string, values [][]string) error {
	r, err := ParseRange(rng)
	if err != nil {
		return err
	}
	col, row := r.Origin()

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open()
	if err != nil {
		return err
	}
	defer closeWorkbook(f)

	if err := requireSheet(f, sheet); err != nil {
		return err
	}
	for i, line := range values {
		for j, value := range line {
			cell, err := excelize.CoordinatesToCellName(col+j+1, row+i+1)
			if err != nil {
				return fmt.Errorf("failed to address cell: %w", err)
			}
			if err := f.SetCellStr(sheet, cell, value); err != nil {
				return apperr.Upstream(err, "failed to write cell %s!%s", sheet, cell)
			}
		}
	}
	if err := f.Save(); err != nil {
		return apperr.Upstream(err, "failed to save workbook %s", filepath.Base(w.path))
	}
	return nil
}

func requireSheet(f *excelize.File, sheet string) error {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		return apperr.NotFound("sheet %s not found", sheet)
	}
	return nil
}
