package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// Appender appends rows to a spreadsheet range and reports the number of
// updated cells.
type Appender interface {
	Append(ctx context.Context, sheetID, sheetRange string, values [][]string) (int64, error)
}

// GoogleAppender writes through the Sheets v4 API using a service account.
type GoogleAppender struct {
	values *gsheets.SpreadsheetsValuesService
}

func NewGoogleAppender(ctx context.Context, credentialsFile string) (*GoogleAppender, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	opts = append(opts, option.WithScopes(gsheets.SpreadsheetsScope))

	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &GoogleAppender{values: svc.Spreadsheets.Values}, nil
}

func (g *GoogleAppender) Append(ctx context.Context, sheetID, sheetRange string, values [][]string) (int64, error) {
	rows := make([][]interface{}, len(values))
	for i, row := range values {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		rows[i] = cells
	}

	resp, err := g.values.Append(sheetID, sheetRange, &gsheets.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return 0, err
	}
	if resp.Updates == nil {
		return 0, nil
	}
	return resp.Updates.UpdatedCells, nil
}
