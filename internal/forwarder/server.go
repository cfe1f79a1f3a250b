// Package forwarder is the service that holds the Google credentials and
// appends exported rows to a sheet on behalf of the roster API.
package forwarder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/courtside/roster/internal/api"
	"github.com/courtside/roster/internal/sheets"
)

const (
	msgNoData  = "ไม่มีข้อมูลให้ส่งออก"
	msgFailed  = "เกิดข้อผิดพลาดในการส่งข้อมูลไปยัง Google Sheets: "
	msgSuccess = "ส่งข้อมูล %d แถวไปยัง Google Sheets สำเร็จ"
)

type Config struct {
	Port         int
	Appender     sheets.Appender
	DefaultSheet string
	DefaultRange string
	Logger       *slog.Logger
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

func NewServer(cfg Config) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           NewRouter(cfg),
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting sheets forwarder", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down sheets forwarder")
	return s.httpServer.Shutdown(ctx)
}

func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(api.RequestIDMiddleware())
	r.Use(api.RecoveryMiddleware(cfg.Logger))
	r.Use(api.LoggingMiddleware(cfg.Logger))
	r.Use(api.CORSAllowlist([]string{"*"}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "google-sheets-api"})
	})
	r.Post("/api/google-sheets", appendHandler(cfg))

	return r
}

func appendHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sheets.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Values) == 0 {
			api.WriteJSON(w, http.StatusBadRequest, sheets.Response{Success: false, Message: msgNoData})
			return
		}

		sheetID := req.SheetID
		if sheetID == "" {
			sheetID = cfg.DefaultSheet
		}
		sheetRange := req.Range
		if sheetRange == "" {
			sheetRange = cfg.DefaultRange
		}

		cells, err := cfg.Appender.Append(r.Context(), sheetID, sheetRange, req.Values)
		if err != nil {
			cfg.Logger.Error("sheets append failed", "sheet_id", sheetID, "rows", len(req.Values), "error", err)
			api.WriteJSON(w, http.StatusInternalServerError, sheets.Response{Success: false, Message: msgFailed + err.Error()})
			return
		}

		cfg.Logger.Info("rows appended to sheet", "sheet_id", sheetID, "rows", len(req.Values), "updated_cells", cells)
		api.WriteJSON(w, http.StatusOK, sheets.Response{
			Success:      true,
			Message:      fmt.Sprintf(msgSuccess, len(req.Values)),
			UpdatedCells: cells,
		})
	}
}
