package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/courtside/roster/internal/db"
)

type Repository interface {
	CreateAthlete(ctx context.Context, a *Athlete) error
	GetAthlete(ctx context.Context, id string) (*Athlete, error)
	GetAthleteByStudentID(ctx context.Context, studentID string) (*Athlete, error)
	ListAthletes(ctx context.Context) ([]*Athlete, error)
	SearchAthletes(ctx context.Context, query string) ([]*Athlete, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateField(ctx context.Context, id, field, value string) error

	CreateUpload(ctx context.Context, u *Upload) error
	UpdateUpload(ctx context.Context, u *Upload) error
	GetUpload(ctx context.Context, id string) (*Upload, error)
	ListUploads(ctx context.Context, limit int) ([]*Upload, error)
	ListOrphanedUploads(ctx context.Context) ([]*Upload, error)
}

type SQLRepository struct {
	db *db.DB
}

func NewRepository(database *db.DB) *SQLRepository {
	return &SQLRepository{db: database}
}

const athleteColumns = `id, student_id, name, nickname, phone_number, year_of_study, curriculum, sport, status, image_url, created_at, updated_at`

const uploadColumns = `id, athlete_id, storage_key, file_name, size, phase, progress, message, locator, escalated, late_outcome, orphaned, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.db.Conn().ExecContext(ctx, r.db.Rebind(query), args...)
}

func (r *SQLRepository) CreateAthlete(ctx context.Context, a *Athlete) error {
	_, err := r.exec(ctx, `
		INSERT INTO athletes (`+athleteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.StudentID, a.Name, a.Nickname, a.PhoneNumber, a.YearOfStudy, a.Curriculum, a.Sport, a.Status, a.ImageURL,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	return err
}

func (r *SQLRepository) GetAthlete(ctx context.Context, id string) (*Athlete, error) {
	row := r.db.Conn().QueryRowContext(ctx, r.db.Rebind(`SELECT `+athleteColumns+` FROM athletes WHERE id = ?`), id)
	return scanAthleteRow(row)
}

func (r *SQLRepository) GetAthleteByStudentID(ctx context.Context, studentID string) (*Athlete, error) {
	row := r.db.Conn().QueryRowContext(ctx, r.db.Rebind(`SELECT `+athleteColumns+` FROM athletes WHERE student_id = ?`), studentID)
	return scanAthleteRow(row)
}

func (r *SQLRepository) ListAthletes(ctx context.Context) ([]*Athlete, error) {
	return r.queryAthletes(ctx, `SELECT `+athleteColumns+` FROM athletes ORDER BY name, id`)
}

// SearchAthletes matches a case-insensitive substring of the athlete name.
func (r *SQLRepository) SearchAthletes(ctx context.Context, query string) ([]*Athlete, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	return r.queryAthletes(ctx, `SELECT `+athleteColumns+` FROM athletes WHERE LOWER(name) LIKE ? ESCAPE '\' ORDER BY name, id`, pattern)
}

func (r *SQLRepository) queryAthletes(ctx context.Context, query string, args ...any) ([]*Athlete, error) {
	rows, err := r.db.Conn().QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	athletes := []*Athlete{}
	for rows.Next() {
		a, err := scanAthlete(rows)
		if err != nil {
			return nil, err
		}
		athletes = append(athletes, a)
	}
	return athletes, rows.Err()
}

func (r *SQLRepository) UpdateStatus(ctx context.Context, id, status string) error {
	return r.UpdateField(ctx, id, "status", status)
}

// UpdateField writes a single whitelisted column of an athlete record.
func (r *SQLRepository) UpdateField(ctx context.Context, id, field, value string) error {
	if !updatableFields[field] {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	res, err := r.exec(ctx, `UPDATE athletes SET `+field+` = ?, updated_at = ? WHERE id = ?`,
		value, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRepository) CreateUpload(ctx context.Context, u *Upload) error {
	_, err := r.exec(ctx, `
		INSERT INTO uploads (`+uploadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.AthleteID, u.StorageKey, u.FileName, u.Size, u.Phase, u.Progress, u.Message, u.Locator,
		boolToInt(u.Escalated), u.LateOutcome, boolToInt(u.Orphaned), formatTime(u.CreatedAt), formatTime(u.UpdatedAt))
	return err
}

func (r *SQLRepository) UpdateUpload(ctx context.Context, u *Upload) error {
	res, err := r.exec(ctx, `
		UPDATE uploads SET phase = ?, progress = ?, message = ?, locator = ?, escalated = ?, late_outcome = ?, orphaned = ?, updated_at = ?
		WHERE id = ?
	`, u.Phase, u.Progress, u.Message, u.Locator, boolToInt(u.Escalated), u.LateOutcome, boolToInt(u.Orphaned),
		formatTime(u.UpdatedAt), u.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUploadNotFound
	}
	return nil
}

func (r *SQLRepository) GetUpload(ctx context.Context, id string) (*Upload, error) {
	row := r.db.Conn().QueryRowContext(ctx, r.db.Rebind(`SELECT `+uploadColumns+` FROM uploads WHERE id = ?`), id)
	u, err := scanUpload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (r *SQLRepository) ListUploads(ctx context.Context, limit int) ([]*Upload, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.queryUploads(ctx, `SELECT `+uploadColumns+` FROM uploads ORDER BY created_at DESC, id LIMIT ?`, limit)
}

func (r *SQLRepository) ListOrphanedUploads(ctx context.Context) ([]*Upload, error) {
	return r.queryUploads(ctx, `SELECT `+uploadColumns+` FROM uploads WHERE orphaned = 1 ORDER BY created_at`)
}

func (r *SQLRepository) queryUploads(ctx context.Context, query string, args ...any) ([]*Upload, error) {
	rows, err := r.db.Conn().QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	uploads := []*Upload{}
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

func scanAthleteRow(row *sql.Row) (*Athlete, error) {
	a, err := scanAthlete(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func scanAthlete(s scanner) (*Athlete, error) {
	var a Athlete
	var createdAt, updatedAt string
	err := s.Scan(&a.ID, &a.StudentID, &a.Name, &a.Nickname, &a.PhoneNumber, &a.YearOfStudy, &a.Curriculum,
		&a.Sport, &a.Status, &a.ImageURL, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &a, nil
}

func scanUpload(s scanner) (*Upload, error) {
	var u Upload
	var escalated, orphaned int
	var createdAt, updatedAt string
	err := s.Scan(&u.ID, &u.AthleteID, &u.StorageKey, &u.FileName, &u.Size, &u.Phase, &u.Progress, &u.Message,
		&u.Locator, &escalated, &u.LateOutcome, &orphaned, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	u.Escalated = escalated == 1
	u.Orphaned = orphaned == 1
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &u, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
