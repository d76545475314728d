package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/CMPEQ0/lab-mark-api/apperr"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// Google is a Backend over one Google spreadsheet.
type Google struct {
	svc           *gsheets.Service
	spreadsheetID string
}

// NewGoogle wraps an existing Sheets API service.
func NewGoogle(svc *gsheets.Service, spreadsheetID string) *Google {
	return &Google{svc: svc, spreadsheetID: spreadsheetID}
}

// GoogleOpener authenticates with the stored credential on every open.
func GoogleOpener(store *CredentialStore) Opener {
	return func(ctx context.Context, spreadsheetID string) (Backend, error) {
		ts, err := store.TokenSource(ctx)
		if err != nil {
			return nil, err
		}
		svc, err := gsheets.NewService(ctx, option.WithTokenSource(ts))
		if err != nil {
			return nil, apperr.Upstream(err, "failed to create Google Sheets client")
		}
		return NewGoogle(svc, spreadsheetID), nil
	}
}

func (g *Google) SheetNames(ctx context.Context) ([]string, error) {
	ss, err := g.svc.Spreadsheets.Get(g.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, googleError(err, "failed to read spreadsheet %s", g.spreadsheetID)
	}

	names := make([]string, 0, len(ss.Sheets))
	for _, sheet := range ss.Sheets {
		if sheet.Properties != nil {
			names = append(names, sheet.Properties.Title)
		}
	}
	return names, nil
}

func (g *Google) ReadRange(ctx context.Context, sheet, rng string) ([][]string, error) {
	vr, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, a1(sheet, rng)).Context(ctx).Do()
	if err != nil {
		return nil, googleError(err, "failed to read %s!%s", sheet, rng)
	}

	rows := make([][]string, 0, len(vr.Values))
	for _, line := range vr.Values {
		cells := make([]string, 0, len(line))
		for _, v := range line {
			cells = append(cells, fmt.Sprint(v))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func (g *Google) WriteRange(ctx context.Context, sheet, rng string, values [][]string) error {
	body := &gsheets.ValueRange{Values: make([][]interface{}, 0, len(values))}
	for _, line := range values {
		cells := make([]interface{}, 0, len(line))
		for _, v := range line {
			cells = append(cells, v)
		}
		body.Values = append(body.Values, cells)
	}

	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, a1(sheet, rng), body).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return googleError(err, "failed to write %s!%s", sheet, rng)
	}
	return nil
}

func googleError(err error, format string, args ...any) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return &apperr.Error{Kind: apperr.KindNotFound, Message: fmt.Sprintf(format, args...), Err: err}
	}
	return apperr.Upstream(err, format, args...)
}
