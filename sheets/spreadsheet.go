package sheets

import (
	"context"
	"strconv"

	"github.com/CMPEQ0/lab-mark-api/apperr"
)

// Group sheet layout, zero-based.
const (
	HeaderRow    = 0 // column headers, lab deadlines above lab columns
	LabRow       = 1 // lab short names
	GitHubHeader = "GitHub"
)

// Spreadsheet implements roster lookups and write-once marks on a Backend.
type Spreadsheet struct {
	backend Backend
}

func New(backend Backend) *Spreadsheet {
	return &Spreadsheet{backend: backend}
}

func (s *Spreadsheet) SheetNames(ctx context.Context) ([]string, error) {
	return s.backend.SheetNames(ctx)
}

// Row returns the cells of one row.
func (s *Spreadsheet) Row(ctx context.Context, sheet string, row int) ([]string, error) {
	n := strconv.Itoa(RowNumber(row))
	grid, err := s.backend.ReadRange(ctx, sheet, n+":"+n)
	if err != nil {
		return nil, err
	}
	if len(grid) == 0 {
		return nil, nil
	}
	return grid[0], nil
}

// Column returns one column top to bottom. Empty cells are kept as "" so
// positions match row indexes.
func (s *Spreadsheet) Column(ctx context.Context, sheet string, col int) ([]string, error) {
	letter := ColumnLetter(col)
	if letter == "" {
		return nil, apperr.NotFound("column %d is out of range", col)
	}
	grid, err := s.backend.ReadRange(ctx, sheet, letter+":"+letter)
	if err != nil {
		return nil, err
	}
	cells := make([]string, len(grid))
	for i, line := range grid {
		if len(line) > 0 {
			cells[i] = line[0]
		}
	}
	return cells, nil
}

func (s *Spreadsheet) ReadCell(ctx context.Context, sheet string, col, row int) (string, error) {
	grid, err := s.backend.ReadRange(ctx, sheet, CellName(col, row))
	if err != nil {
		return "", err
	}
	if len(grid) == 0 || len(grid[0]) == 0 {
		return "", nil
	}
	return grid[0][0], nil
}

func (s *Spreadsheet) WriteCell(ctx context.Context, sheet string, col, row int, value string) error {
	return s.backend.WriteRange(ctx, sheet, CellName(col, row), [][]string{{value}})
}

// FindColumn locates the column whose cell in headerRow equals name exactly.
func (s *Spreadsheet) FindColumn(ctx context.Context, sheet string, headerRow int, name string) (int, error) {
	cells, err := s.Row(ctx, sheet, headerRow)
	if err != nil {
		return 0, err
	}
	if i := indexOf(cells, name); i >= 0 {
		return i, nil
	}
	return 0, apperr.NotFound("column %q not found in group %s", name, sheet)
}

// FindStudentRow locates the row holding fullName in nameColumn.
func (s *Spreadsheet) FindStudentRow(ctx context.Context, sheet string, nameColumn int, fullName string) (int, error) {
	cells, err := s.Column(ctx, sheet, nameColumn)
	if err != nil {
		return 0, err
	}
	if i := indexOf(cells, fullName); i >= 0 {
		return i, nil
	}
	return 0, apperr.NotFound("student %q not found in group %s", fullName, sheet)
}

// FindLoginRow locates the row registered to a GitHub login.
func (s *Spreadsheet) FindLoginRow(ctx context.Context, sheet, githubLogin string) (int, error) {
	col, err := s.FindColumn(ctx, sheet, HeaderRow, GitHubHeader)
	if err != nil {
		return 0, err
	}
	cells, err := s.Column(ctx, sheet, col)
	if err != nil {
		return 0, err
	}
	for i := HeaderRow + 1; i < len(cells); i++ {
		if cells[i] == githubLogin {
			return i, nil
		}
	}
	return 0, apperr.NotFound("GitHub account %s is not registered in group %s", githubLogin, sheet)
}

// LabColumn locates a lab by its short name in the lab row.
func (s *Spreadsheet) LabColumn(ctx context.Context, sheet, labShortName string) (int, error) {
	cells, err := s.Row(ctx, sheet, LabRow)
	if err != nil {
		return 0, err
	}
	if i := indexOf(cells, labShortName); i >= 0 {
		return i, nil
	}
	return 0, apperr.NotFound("lab %s not found in group %s", labShortName, sheet)
}

// LabDeadline reads the deadline stored in the header row above the lab column.
func (s *Spreadsheet) LabDeadline(ctx context.Context, sheet, labShortName string) (string, error) {
	col, err := s.LabColumn(ctx, sheet, labShortName)
	if err != nil {
		return "", err
	}
	deadline, err := s.ReadCell(ctx, sheet, col, HeaderRow)
	if err != nil {
		return "", err
	}
	if deadline == "" {
		return "", apperr.NotFound("deadline for lab %s is not set in group %s", labShortName, sheet)
	}
	return deadline, nil
}

// WriteMark writes mark into the student's cell of the lab column. A cell
// that already holds anything is never overwritten.
func (s *Spreadsheet) WriteMark(ctx context.Context, sheet, labShortName, githubLogin, mark string) error {
	row, err := s.FindLoginRow(ctx, sheet, githubLogin)
	if err != nil {
		return err
	}
	col, err := s.LabColumn(ctx, sheet, labShortName)
	if err != nil {
		return err
	}
	old, err := s.ReadCell(ctx, sheet, col, row)
	if err != nil {
		return err
	}
	if old != "" {
		return apperr.Conflict("lab %s has already been graded for %s, contact your instructor to grade it again", labShortName, githubLogin)
	}
	return s.WriteCell(ctx, sheet, col, row, mark)
}

func indexOf(cells []string, value string) int {
	for i, c := range cells {
		if c == value {
			return i
		}
	}
	return -1
}
