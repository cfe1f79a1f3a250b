// Package session issues and verifies role sessions. A session is an explicit
// value carried in a signed token; nothing about it is held process-wide.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleAthlete Role = "athlete"
	RoleCoach   Role = "coach"
	RoleAdmin   Role = "admin"
)

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrRoleDisabled    = errors.New("role has no password configured")
	ErrUnknownRole     = errors.New("unknown role")
	ErrInvalidToken    = errors.New("invalid token")
)

// Session is an authenticated caller. SubjectID is the athlete id for
// athlete sessions and empty otherwise.
type Session struct {
	Role            Role      `json:"role"`
	SubjectID       string    `json:"subject_id,omitempty"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Allows reports whether the session may act on athleteID's own resources.
func (s Session) Allows(athleteID string) bool {
	switch s.Role {
	case RoleCoach, RoleAdmin:
		return true
	case RoleAthlete:
		return s.SubjectID != "" && s.SubjectID == athleteID
	}
	return false
}

// Claims is the token payload.
type Claims struct {
	jwt.RegisteredClaims
	Role      Role   `json:"role"`
	SubjectID string `json:"sub_id,omitempty"`
}

type Manager struct {
	secret    []byte
	ttl       time.Duration
	passwords map[Role]string
	now       func() time.Time
}

// NewManager builds a manager from bcrypt password hashes. An empty secret
// gets a random one, which invalidates tokens on restart.
func NewManager(secret string, ttl time.Duration, coachHash, adminHash string) (*Manager, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{
		secret: key,
		ttl:    ttl,
		passwords: map[Role]string{
			RoleCoach: coachHash,
			RoleAdmin: adminHash,
		},
		now: time.Now,
	}, nil
}

// Login checks password against the hash configured for role.
func (m *Manager) Login(role Role, password string) (Session, string, error) {
	hash, ok := m.passwords[role]
	if !ok {
		return Session{}, "", ErrUnknownRole
	}
	if hash == "" {
		return Session{}, "", ErrRoleDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return Session{}, "", ErrInvalidPassword
	}
	return m.issue(role, "")
}

// IssueAthlete starts a session scoped to one athlete, after the caller has
// verified the athlete's phone number.
func (m *Manager) IssueAthlete(athleteID string) (Session, string, error) {
	return m.issue(RoleAthlete, athleteID)
}

func (m *Manager) issue(role Role, subjectID string) (Session, string, error) {
	now := m.now().UTC().Truncate(time.Second)
	s := Session{
		Role:            role,
		SubjectID:       subjectID,
		AuthenticatedAt: now,
		ExpiresAt:       now.Add(m.ttl),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(s.AuthenticatedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
		Role:      role,
		SubjectID: subjectID,
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return Session{}, "", err
	}
	return s, signed, nil
}

// Parse verifies a token and returns its session.
func (m *Manager) Parse(tokenString string) (Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return Session{}, ErrInvalidToken
	}
	switch claims.Role {
	case RoleAthlete, RoleCoach, RoleAdmin:
	default:
		return Session{}, ErrInvalidToken
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return Session{}, ErrInvalidToken
	}
	return Session{
		Role:            claims.Role,
		SubjectID:       claims.SubjectID,
		AuthenticatedAt: claims.IssuedAt.Time.UTC(),
		ExpiresAt:       claims.ExpiresAt.Time.UTC(),
	}, nil
}

// HashPassword returns a bcrypt hash suitable for the password settings.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

type ctxKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}
