package api

import (
	"time"

	"github.com/courtside/roster/internal/roster"
	"github.com/courtside/roster/internal/session"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type LoginRequest struct {
	Role     string `json:"role"`
	Password string `json:"password"`
}

type SessionResponse struct {
	Token     string `json:"token"`
	Role      string `json:"role"`
	SubjectID string `json:"subject_id,omitempty"`
	ExpiresAt string `json:"expires_at"`
}

type LookupRequest struct {
	StudentID string `json:"student_id"`
}

type LookupResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Nickname string `json:"nickname,omitempty"`
}

type VerifyRequest struct {
	StudentID   string `json:"student_id"`
	PhoneNumber string `json:"phone_number"`
}

type VerifyResponse struct {
	Athlete AthleteResponse `json:"athlete"`
	Session SessionResponse `json:"session"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type AthleteResponse struct {
	ID          string `json:"id"`
	StudentID   string `json:"student_id"`
	Name        string `json:"name"`
	Nickname    string `json:"nickname,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	YearOfStudy string `json:"year_of_study,omitempty"`
	Curriculum  string `json:"curriculum,omitempty"`
	Sport       string `json:"sport,omitempty"`
	Status      string `json:"status"`
	ImageURL    string `json:"image_url,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type AthletesResponse struct {
	Athletes []AthleteResponse `json:"athletes"`
}

type UploadResponse struct {
	ID          string `json:"id"`
	AthleteID   string `json:"athlete_id"`
	StorageKey  string `json:"storage_key"`
	FileName    string `json:"file_name"`
	Size        int64  `json:"size"`
	Phase       string `json:"phase"`
	Progress    int    `json:"progress"`
	Message     string `json:"message,omitempty"`
	Locator     string `json:"locator,omitempty"`
	Escalated   bool   `json:"escalated"`
	LateOutcome string `json:"late_outcome,omitempty"`
	Orphaned    bool   `json:"orphaned"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type UploadsResponse struct {
	Uploads []UploadResponse `json:"uploads"`
}

type SheetsExportResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Rows         int    `json:"rows"`
	UpdatedCells int64  `json:"updated_cells"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func SessionToResponse(s session.Session, token string) SessionResponse {
	return SessionResponse{
		Token:     token,
		Role:      string(s.Role),
		SubjectID: s.SubjectID,
		ExpiresAt: s.ExpiresAt.Format(time.RFC3339),
	}
}

func AthleteToResponse(a *roster.Athlete) AthleteResponse {
	return AthleteResponse{
		ID:          a.ID,
		StudentID:   a.StudentID,
		Name:        a.Name,
		Nickname:    a.Nickname,
		PhoneNumber: a.PhoneNumber,
		YearOfStudy: a.YearOfStudy,
		Curriculum:  a.Curriculum,
		Sport:       a.Sport,
		Status:      a.Status,
		ImageURL:    a.ImageURL,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   a.UpdatedAt.Format(time.RFC3339),
	}
}

func UploadToResponse(u *roster.Upload) UploadResponse {
	return UploadResponse{
		ID:          u.ID,
		AthleteID:   u.AthleteID,
		StorageKey:  u.StorageKey,
		FileName:    u.FileName,
		Size:        u.Size,
		Phase:       u.Phase,
		Progress:    u.Progress,
		Message:     u.Message,
		Locator:     u.Locator,
		Escalated:   u.Escalated,
		LateOutcome: u.LateOutcome,
		Orphaned:    u.Orphaned,
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   u.UpdatedAt.Format(time.RFC3339),
	}
}
