package sheets

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ColumnLetter converts a zero-based column index to A1 notation: 0 → A, 26 → AA.
// It returns an empty string for indexes outside the sheet limits.
func ColumnLetter(index int) string {
	name, err := excelize.ColumnNumberToName(index + 1)
	if err != nil {
		return ""
	}
	return name
}

// ColumnIndex converts a column letter back to its zero-based index.
func ColumnIndex(letter string) (int, error) {
	n, err := excelize.ColumnNameToNumber(letter)
	if err != nil {
		return 0, err
	}
	return n - 1, nil
}

// RowNumber converts a zero-based row index to a 1-based row number.
func RowNumber(index int) int {
	return index + 1
}

// CellName returns the A1 name of the cell at zero-based col and row.
func CellName(col, row int) string {
	return ColumnLetter(col) + strconv.Itoa(RowNumber(row))
}

// Range is a parsed A1 range with zero-based bounds. Open bounds are -1.
type Range struct {
	FirstCol, FirstRow int
	LastCol, LastRow   int
}

// ParseRange parses "B5", "A1:C3", "2:2", "C:C" and mixed forms like "A2:C".
func ParseRange(ref string) (Range, error) {
	first, last, found := strings.Cut(strings.TrimSpace(ref), ":")
	fc, fr, err := parseRef(first)
	if err != nil {
		return Range{}, fmt.Errorf("invalid range %q: %w", ref, err)
	}
	if !found {
		return Range{FirstCol: fc, FirstRow: fr, LastCol: fc, LastRow: fr}, nil
	}
	lc, lr, err := parseRef(last)
	if err != nil {
		return Range{}, fmt.Errorf("invalid range %q: %w", ref, err)
	}
	return Range{FirstCol: fc, FirstRow: fr, LastCol: lc, LastRow: lr}, nil
}

func parseRef(ref string) (col, row int, err error) {
	col, row = -1, -1
	split := strings.IndexFunc(ref, func(r rune) bool { return r >= '0' && r <= '9' })
	letters, digits := ref, ""
	if split >= 0 {
		letters, digits = ref[:split], ref[split:]
	}
	if letters == "" && digits == "" {
		return 0, 0, fmt.Errorf("empty reference")
	}
	if letters != "" {
		if col, err = ColumnIndex(strings.ToUpper(letters)); err != nil {
			return 0, 0, err
		}
	}
	if digits != "" {
		n, err := strconv.Atoi(digits)
		if err != nil || n < 1 {
			return 0, 0, fmt.Errorf("invalid row %q", digits)
		}
		row = n - 1
	}
	return col, row, nil
}

// Origin returns the top-left cell of the range.
func (r Range) Origin() (col, row int) {
	return max(r.FirstCol, 0), max(r.FirstRow, 0)
}

// Extract cuts the range out of a full-sheet grid. Trailing empty cells of a
// row and trailing empty rows are dropped.
func (r Range) Extract(rows [][]string) [][]string {
	firstCol, firstRow := r.Origin()
	lastRow := r.LastRow
	if lastRow < 0 || lastRow >= len(rows) {
		lastRow = len(rows) - 1
	}

	out := [][]string{}
	for i := firstRow; i <= lastRow; i++ {
		row := rows[i]
		lastCol := r.LastCol
		if lastCol < 0 || lastCol >= len(row) {
			lastCol = len(row) - 1
		}
		cells := []string{}
		for j := firstCol; j <= lastCol; j++ {
			cells = append(cells, row[j])
		}
		out = append(out, trimRow(cells))
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out
}

func trimRow(cells []string) []string {
	for len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}

// a1 builds a sheet-qualified range, quoting the sheet name.
func a1(sheet, rng string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + rng
}
