package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/courtside/roster/internal/roster"
	"github.com/courtside/roster/internal/session"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist(cfg.AllowedOrigins))
	r.Use(AuthMiddleware(cfg.Sessions, cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Post("/session", loginHandler(cfg))

	r.Post("/athletes", registerHandler(cfg))
	r.Post("/athletes/lookup", lookupHandler(cfg))
	r.Post("/athletes/verify", verifyHandler(cfg))

	r.With(RequireRole(session.RoleCoach, session.RoleAdmin)).Get("/athletes", listAthletesHandler(cfg))

	r.Route("/athletes/{id}", func(r chi.Router) {
		r.Use(RequireAthleteAccess(athleteIDParam))

		r.Get("/", getAthleteHandler(cfg))
		r.With(RequireRole(session.RoleCoach)).Put("/status", setStatusHandler(cfg))

		r.Post("/photo", submitPhotoHandler(cfg))
		r.Get("/photo", photoStateHandler(cfg))
		r.Get("/photo/events", photoEventsHandler(cfg))
		r.Post("/photo/escalate", escalatePhotoHandler(cfg))
		r.Delete("/photo/attempt", cancelPhotoHandler(cfg))
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireRole(session.RoleAdmin))

		r.Get("/export/csv", exportCSVHandler(cfg))
		r.Post("/export/sheets", exportSheetsHandler(cfg))
		r.Get("/uploads", listUploadsHandler(cfg))
	})

	if cfg.Media != nil {
		r.Handle("/media/*", http.StripPrefix("/media/", cfg.Media))
	}

	return r
}

func athleteIDParam(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func loginHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		s, token, err := cfg.Sessions.Login(session.Role(req.Role), req.Password)
		switch {
		case err == nil:
		case errors.Is(err, session.ErrUnknownRole):
			WriteError(w, http.StatusBadRequest, "role must be coach or admin", "BAD_REQUEST")
			return
		case errors.Is(err, session.ErrRoleDisabled):
			WriteError(w, http.StatusForbidden, err.Error(), "ROLE_DISABLED")
			return
		case errors.Is(err, session.ErrInvalidPassword):
			cfg.Logger.Warn("login failed", "role", req.Role)
			WriteError(w, http.StatusUnauthorized, "incorrect password", "UNAUTHORIZED")
			return
		default:
			writeServiceError(w, cfg.Logger, err)
			return
		}

		cfg.Logger.Info("session opened", "role", s.Role)
		WriteJSON(w, http.StatusOK, SessionToResponse(s, token))
	}
}

func registerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req roster.RegisterInput
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		a, err := cfg.Service.Register(r.Context(), req)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		s, token, err := cfg.Sessions.IssueAthlete(a.ID)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		WriteJSON(w, http.StatusCreated, VerifyResponse{
			Athlete: AthleteToResponse(a),
			Session: SessionToResponse(s, token),
		})
	}
}

func lookupHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LookupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		a, err := cfg.Service.Lookup(r.Context(), req.StudentID)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		WriteJSON(w, http.StatusOK, LookupResponse{ID: a.ID, Name: a.Name, Nickname: a.Nickname})
	}
}

func verifyHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VerifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		a, err := cfg.Service.VerifyPhone(r.Context(), req.StudentID, req.PhoneNumber)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		s, token, err := cfg.Sessions.IssueAthlete(a.ID)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		WriteJSON(w, http.StatusOK, VerifyResponse{
			Athlete: AthleteToResponse(a),
			Session: SessionToResponse(s, token),
		})
	}
}

func listAthletesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		athletes, err := cfg.Service.List(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		resp := AthletesResponse{Athletes: make([]AthleteResponse, len(athletes))}
		for i, a := range athletes {
			resp.Athletes[i] = AthleteToResponse(a)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getAthleteHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := cfg.Service.Get(r.Context(), athleteIDParam(r))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, AthleteToResponse(a))
	}
}

func setStatusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		a, err := cfg.Service.SetStatus(r.Context(), athleteIDParam(r), req.Status)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, AthleteToResponse(a))
	}
}

// writeServiceError maps roster and session errors to HTTP responses.
// Anything unrecognised is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case roster.IsInputError(err):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	case errors.Is(err, roster.ErrInvalidStatus):
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_STATUS")
	case errors.Is(err, roster.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, roster.ErrDuplicateStudentID):
		WriteError(w, http.StatusConflict, err.Error(), "DUPLICATE_STUDENT_ID")
	case errors.Is(err, roster.ErrPhoneMismatch):
		WriteError(w, http.StatusUnauthorized, err.Error(), "PHONE_MISMATCH")
	default:
		logger.Error("request failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
