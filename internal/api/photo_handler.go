package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/courtside/roster/internal/logging"
	"github.com/courtside/roster/internal/upload"
)

// maxUploadRequest bounds the multipart body. It is larger than the photo
// limit so oversized photos are still reported with their real size.
const maxUploadRequest = 4 * upload.MaxFileSize

var sseKeepAlive = 15 * time.Second

// photoControl resolves the athlete in the URL and returns its upload control.
func photoControl(cfg ServerConfig, w http.ResponseWriter, r *http.Request) (*upload.Control, bool) {
	a, err := cfg.Service.Get(r.Context(), athleteIDParam(r))
	if err != nil {
		writeServiceError(w, cfg.Logger, err)
		return nil, false
	}
	return cfg.Uploads.Control(a.ID), true
}

// existingControl is photoControl without creating a control. The control is
// nil when the athlete has never submitted a file.
func existingControl(cfg ServerConfig, w http.ResponseWriter, r *http.Request) (*upload.Control, bool) {
	a, err := cfg.Service.Get(r.Context(), athleteIDParam(r))
	if err != nil {
		writeServiceError(w, cfg.Logger, err)
		return nil, false
	}
	c, _ := cfg.Uploads.Lookup(a.ID)
	return c, true
}

func submitPhotoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		control, ok := photoControl(cfg, w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadRequest)
		if err := r.ParseMultipartForm(upload.MaxFileSize); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				WriteError(w, http.StatusRequestEntityTooLarge, "request body too large", "REQUEST_TOO_LARGE")
				return
			}
			WriteError(w, http.StatusBadRequest, "expected a multipart form with a file field", "BAD_REQUEST")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			WriteError(w, http.StatusBadRequest, "file is required", "BAD_REQUEST")
			return
		}
		defer file.Close()

		f := upload.File{
			Name:        header.Filename,
			Size:        header.Size,
			ContentType: header.Header.Get("Content-Type"),
		}

		verr := upload.Validate(f.Name, f.Size)
		if verr == nil {
			// The form is removed when the handler returns, so the bytes are
			// copied before the request is detached.
			body, err := io.ReadAll(io.LimitReader(file, upload.MaxFileSize+1))
			if err != nil {
				WriteError(w, http.StatusBadRequest, "failed to read file", "BAD_REQUEST")
				return
			}
			f.Size = int64(len(body))
			f.Body = bytes.NewReader(body)
		}

		snap, ok := <-control.Submit(r.Context(), f)
		if !ok {
			snap = control.Snapshot()
		}

		var invalid *upload.ValidationError
		if errors.As(verr, &invalid) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(ErrorResponse{Error: invalid.Error(), Code: "INVALID_FILE", Reason: string(invalid.Reason)})
			return
		}

		WriteJSON(w, http.StatusAccepted, snap)
	}
}

func photoStateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		control, ok := existingControl(cfg, w, r)
		if !ok {
			return
		}
		if control == nil {
			WriteJSON(w, http.StatusOK, upload.Snapshot{Phase: upload.PhaseIdle})
			return
		}
		WriteJSON(w, http.StatusOK, control.Snapshot())
	}
}

// photoEventsHandler streams snapshots as server-sent events until the
// client goes away.
func photoEventsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		control, ok := photoControl(cfg, w, r)
		if !ok {
			return
		}

		rc := http.NewResponseController(w)
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		if err := rc.Flush(); err != nil {
			cfg.Logger.Error("event stream not supported", "error", err)
			return
		}

		snaps, stop := control.Subscribe()
		defer stop()

		keepAlive := time.NewTicker(sseKeepAlive)
		defer keepAlive.Stop()

		logger := logging.WithAthleteID(cfg.Logger, athleteIDParam(r))
		for {
			select {
			case <-r.Context().Done():
				return
			case snap, ok := <-snaps:
				if !ok {
					return
				}
				data, err := json.Marshal(snap)
				if err != nil {
					logger.Error("failed to encode snapshot", "error", err)
					return
				}
				if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
					return
				}
				if err := rc.Flush(); err != nil {
					return
				}
			case <-keepAlive.C:
				if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
					return
				}
				if err := rc.Flush(); err != nil {
					return
				}
			}
		}
	}
}

func escalatePhotoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		control, ok := existingControl(cfg, w, r)
		if !ok {
			return
		}
		if control == nil {
			WriteError(w, http.StatusConflict, upload.ErrEscalationUnavailable.Error(), "ESCALATION_UNAVAILABLE")
			return
		}

		snap, err := control.Escalate()
		if errors.Is(err, upload.ErrEscalationUnavailable) {
			WriteError(w, http.StatusConflict, err.Error(), "ESCALATION_UNAVAILABLE")
			return
		}
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func cancelPhotoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		control, ok := existingControl(cfg, w, r)
		if !ok {
			return
		}
		if control == nil {
			WriteJSON(w, http.StatusOK, upload.Snapshot{Phase: upload.PhaseIdle})
			return
		}
		WriteJSON(w, http.StatusOK, control.Cancel())
	}
}
