package api

import (
	"bytes"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/courtside/roster/internal/export"
	"github.com/courtside/roster/internal/sheets"
)

// csvFilePrefix is the download name used by the admin screen.
const csvFilePrefix = "นักกีฬาบาสเกตบอล"

func exportCSVHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		athletes, err := cfg.Service.List(r.Context(), "")
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		if len(athletes) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		var buf bytes.Buffer
		n, err := export.WriteCSV(&buf, athletes)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		name := export.Filename(csvFilePrefix, cfg.Now())
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())

		cfg.Logger.Info("csv export written", "rows", n, "bytes", buf.Len())
	}
}

func exportSheetsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		athletes, err := cfg.Service.List(r.Context(), "")
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		if len(athletes) == 0 {
			WriteError(w, http.StatusBadRequest, "no athletes to export", "NO_DATA")
			return
		}

		rows := sheets.Rows(athletes)
		resp, err := cfg.Sheets.Export(r.Context(), rows)
		if err != nil {
			var fe *sheets.ForwardError
			switch {
			case errors.Is(err, sheets.ErrNotConfigured):
				WriteError(w, http.StatusServiceUnavailable, err.Error(), "SHEETS_NOT_CONFIGURED")
			case errors.As(err, &fe):
				cfg.Logger.Error("sheets forwarder rejected export", "status", fe.StatusCode, "retryable", fe.IsRetryable())
				WriteError(w, http.StatusBadGateway, "google sheets export failed", "SHEETS_FAILED")
			default:
				cfg.Logger.Error("sheets export failed", "error", err)
				WriteError(w, http.StatusBadGateway, "google sheets export failed", "SHEETS_FAILED")
			}
			return
		}

		WriteJSON(w, http.StatusOK, SheetsExportResponse{
			Success:      resp.Success,
			Message:      resp.Message,
			Rows:         len(rows),
			UpdatedCells: resp.UpdatedCells,
		})
	}
}

func listUploadsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = n
		}

		uploads, err := cfg.Service.ListUploads(r.Context(), limit)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		resp := UploadsResponse{Uploads: make([]UploadResponse, len(uploads))}
		for i, u := range uploads {
			resp.Uploads[i] = UploadToResponse(u)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
