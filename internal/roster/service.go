package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/courtside/roster/internal/logging"
)

type RegisterInput struct {
	StudentID   string `json:"student_id"`
	Name        string `json:"name"`
	Nickname    string `json:"nickname"`
	PhoneNumber string `json:"phone_number"`
	YearOfStudy string `json:"year_of_study"`
	Curriculum  string `json:"curriculum"`
	Sport       string `json:"sport"`
}

// InputError reports a missing or malformed field in caller input.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Repo exposes the underlying repository to collaborators that write through
// it directly (the upload pipeline and the exporters).
func (s *Service) Repo() Repository {
	return s.repo
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Athlete, error) {
	in.StudentID = strings.TrimSpace(in.StudentID)
	in.Name = strings.TrimSpace(in.Name)
	if in.StudentID == "" {
		return nil, &InputError{Field: "student_id", Message: "is required"}
	}
	if in.Name == "" {
		return nil, &InputError{Field: "name", Message: "is required"}
	}

	existing, err := s.repo.GetAthleteByStudentID(ctx, in.StudentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateStudentID
	}

	now := time.Now().UTC().Truncate(time.Second)
	athlete := &Athlete{
		ID:          NewID(),
		StudentID:   in.StudentID,
		Name:        in.Name,
		Nickname:    strings.TrimSpace(in.Nickname),
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		YearOfStudy: strings.TrimSpace(in.YearOfStudy),
		Curriculum:  strings.TrimSpace(in.Curriculum),
		Sport:       strings.TrimSpace(in.Sport),
		Status:      StatusUnset,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateAthlete(ctx, athlete); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("athlete registered", "athlete_id", athlete.ID)
	}
	return athlete, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Athlete, error) {
	a, err := s.repo.GetAthlete(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound
	}
	return a, nil
}

// Lookup finds an athlete by student id.
func (s *Service) Lookup(ctx context.Context, studentID string) (*Athlete, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, &InputError{Field: "student_id", Message: "is required"}
	}
	a, err := s.repo.GetAthleteByStudentID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound
	}
	return a, nil
}

// VerifyPhone confirms the caller knows the phone number on file for the
// student. Whitespace is ignored on both sides.
func (s *Service) VerifyPhone(ctx context.Context, studentID, phone string) (*Athlete, error) {
	entered := stripSpace(phone)
	if entered == "" {
		return nil, &InputError{Field: "phone_number", Message: "is required"}
	}
	a, err := s.Lookup(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if entered != stripSpace(a.PhoneNumber) {
		if s.logger != nil {
			s.logger.Warn("phone verification failed", "athlete_id", a.ID, "phone", logging.SanitizePhone(entered))
		}
		return nil, ErrPhoneMismatch
	}
	return a, nil
}

// List returns all athletes ordered by name, or only those whose name
// contains query when it is non-empty.
func (s *Service) List(ctx context.Context, query string) ([]*Athlete, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.repo.ListAthletes(ctx)
	}
	return s.repo.SearchAthletes(ctx, query)
}

func (s *Service) SetStatus(ctx context.Context, id, status string) (*Athlete, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Info("athlete status updated", "athlete_id", id, "status", status)
	}
	return s.Get(ctx, id)
}

func (s *Service) ListUploads(ctx context.Context, limit int) ([]*Upload, error) {
	return s.repo.ListUploads(ctx, limit)
}

// IsInputError reports whether err was caused by invalid caller input.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
