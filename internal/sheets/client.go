// Package sheets exports roster rows to a Google Sheet through a small
// forwarding service that holds the service account credentials.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/courtside/roster/internal/roster"
)

// ErrNotConfigured is returned when no forwarder URL is set.
var ErrNotConfigured = errors.New("google sheets export is not configured; set ROSTER_SHEETS_URL")

// ErrNoRows is returned when there is nothing to export.
var ErrNoRows = errors.New("no rows to export")

// ForwardError represents a non-2xx answer from the forwarder.
type ForwardError struct {
	StatusCode int
	Body       string
}

func (e *ForwardError) Error() string {
	return fmt.Sprintf("sheets forward failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx).
// Client errors (4xx) are considered permanent.
func (e *ForwardError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// Request is the forwarder payload.
type Request struct {
	SheetID string     `json:"sheetId"`
	Values  [][]string `json:"values"`
	Range   string     `json:"range"`
}

type Response struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	UpdatedCells int64  `json:"updatedCells"`
}

// Exporter sends rows to a sheet.
type Exporter interface {
	Export(ctx context.Context, values [][]string) (*Response, error)
}

// Rows maps athletes to [student_id, name, phone_number] rows.
func Rows(athletes []*roster.Athlete) [][]string {
	rows := make([][]string, len(athletes))
	for i, a := range athletes {
		rows[i] = []string{a.StudentID, a.Name, a.PhoneNumber}
	}
	return rows
}

// New returns an HTTP exporter, or a stub that always fails with
// ErrNotConfigured when url is empty.
func New(url, sheetID, sheetRange string, logger *slog.Logger) Exporter {
	if url == "" {
		return &StubExporter{}
	}
	return NewHTTPClient(url, sheetID, sheetRange, logger)
}

// HTTPClient posts rows to the forwarder.
type HTTPClient struct {
	url        string
	sheetID    string
	sheetRange string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(url, sheetID, sheetRange string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		url:        url,
		sheetID:    sheetID,
		sheetRange: sheetRange,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

func (c *HTTPClient) Export(ctx context.Context, values [][]string) (*Response, error) {
	if len(values) == 0 {
		return nil, ErrNoRows
	}

	body, err := json.Marshal(Request{SheetID: c.sheetID, Values: values, Range: c.sheetRange})
	if err != nil {
		return nil, fmt.Errorf("marshal sheets payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("forwarding rows to google sheets",
		"url", c.url,
		"sheet_id", c.sheetID,
		"rows", len(values),
		"body_bytes", len(body),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ForwardError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result Response
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode forwarder response: %w", err)
	}
	c.logger.Info("sheets export succeeded", "updated_cells", result.UpdatedCells)
	return &result, nil
}

// StubExporter is used when the forwarder URL is not configured.
type StubExporter struct{}

func (StubExporter) Export(ctx context.Context, values [][]string) (*Response, error) {
	return nil, ErrNotConfigured
}
