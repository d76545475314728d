package sheets

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

type testSheet struct {
	name string
	rows [][]string
}

// newTestWorkbook saves the given sheets as <id>.xlsx in a temp dir and
// returns a backend opened through WorkbookOpener.
func newTestWorkbook(t *testing.T, id string, sheets ...testSheet) (Backend, string) {
	t.Helper()
	dir := t.TempDir()

	f := excelize.NewFile()
	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.name); err != nil {
				t.Fatalf("failed to rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			t.Fatalf("failed to add sheet %s: %v", sh.name, err)
		}
		for r, row := range sh.rows {
			for c, value := range row {
				if value == "" {
					continue
				}
				if err := f.SetCellStr(sh.name, CellName(c, r), value); err != nil {
					t.Fatalf("failed to set cell: %v", err)
				}
			}
		}
	}
	path := filepath.Join(dir, id+".xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("failed to save workbook: %v", err)
	}

	backend, err := WorkbookOpener(dir)(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	return backend, path
}

// groupSheet is a roster with two labs: LR1 due 01.01.2024, LR2 due 15.01.2024.
func groupSheet(name string) testSheet {
	return testSheet{name: name, rows: [][]string{
		{"#", "Student", "GitHub", "01.01.2024", "15.01.2024"},
		{"", "", "", "LR1", "LR2"},
		{"1", "Ivanov Ivan Ivanovich", "ivanov-gh", "", "vv"},
		{},
		{"2", "Petrova Anna", "", "", ""},
	}}
}
