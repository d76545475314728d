// Package sheets wraps the spreadsheet that holds group rosters and marks.
package sheets

import "context"

// Backend is a remote or local tabular data source.
//
// Grids are row-major. Trailing empty cells of a row and trailing empty rows
// are omitted, the way the Google Sheets values API returns them.
type Backend interface {
	SheetNames(ctx context.Context) ([]string, error)
	ReadRange(ctx context.Context, sheet, rng string) ([][]string, error)
	// WriteRange stores values as if a user typed them in.
	WriteRange(ctx context.Context, sheet, rng string, values [][]string) error
}

// Opener returns a fresh Backend for one spreadsheet.
type Opener func(ctx context.Context, spreadsheetID string) (Backend, error)
