// Package config provides configuration management for the roster service.
// Configuration is loaded from environment variables (optionally seeded from a
// .env file) with sensible defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort          = 8787
	DefaultForwarderPort = 3000
	DefaultLogLevel      = "info"
	DefaultDataDir       = ".roster"
	DefaultDBDriver      = "sqlite"
	DefaultStorage       = "local"
	DefaultSheetID       = "1PT5o8oBy0XIrKxkYEFz-_vKi8CV4o2b1pi4FrfeFxZg"
	DefaultSheetRange    = "Sheet1!A:C"
	DefaultS3Bucket      = "athlete-images"
	DefaultS3Region      = "us-east-1"

	DefaultSessionTTL       = 12 * time.Hour
	DefaultStallTimeout     = 30 * time.Second
	DefaultProgressInterval = 300 * time.Millisecond
	DefaultRequestTimeout   = 5 * time.Minute

	// Environment variable names
	EnvPort     = "ROSTER_PORT"
	EnvLogLevel = "ROSTER_LOG_LEVEL"
	EnvDataDir  = "ROSTER_DATA_DIR"

	EnvDBDriver    = "ROSTER_DB_DRIVER"
	EnvDatabaseURL = "ROSTER_DATABASE_URL"

	EnvStorage       = "ROSTER_STORAGE"
	EnvPublicBaseURL = "ROSTER_PUBLIC_BASE_URL"
	EnvS3Bucket      = "ROSTER_S3_BUCKET"
	EnvS3Region      = "ROSTER_S3_REGION"
	EnvS3Endpoint    = "ROSTER_S3_ENDPOINT"
	EnvS3AccessKey   = "ROSTER_S3_ACCESS_KEY"
	EnvS3SecretKey   = "ROSTER_S3_SECRET_KEY"

	EnvSheetsURL  = "ROSTER_SHEETS_URL"
	EnvSheetID    = "ROSTER_SHEET_ID"
	EnvSheetRange = "ROSTER_SHEET_RANGE"

	EnvCoachPasswordHash = "ROSTER_COACH_PASSWORD_HASH"
	EnvAdminPasswordHash = "ROSTER_ADMIN_PASSWORD_HASH"
	EnvSessionSecret     = "ROSTER_SESSION_SECRET"
	EnvSessionTTL        = "ROSTER_SESSION_TTL"

	EnvStallTimeout     = "ROSTER_STALL_TIMEOUT"
	EnvProgressInterval = "ROSTER_PROGRESS_INTERVAL"
	EnvRequestTimeout   = "ROSTER_REQUEST_TIMEOUT"

	EnvAllowedOrigins = "ROSTER_ALLOWED_ORIGINS"

	EnvForwarderPort         = "ROSTER_FORWARDER_PORT"
	EnvGoogleCredentialsFile = "ROSTER_GOOGLE_CREDENTIALS_FILE"

	// Database filename
	DBFilename = "roster.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBDriver() string
	DatabaseURL() string
	Storage() string
	MediaDir() string
	PublicBaseURL() string
	S3() S3Config
	SheetsURL() string
	SheetID() string
	SheetRange() string
	CoachPasswordHash() string
	AdminPasswordHash() string
	SessionSecret() string
	SessionTTL() time.Duration
	StallTimeout() time.Duration
	ProgressInterval() time.Duration
	RequestTimeout() time.Duration
	AllowedOrigins() []string
	ForwarderPort() int
	GoogleCredentialsFile() string
}

// S3Config carries the object storage settings for an S3-compatible backend.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port          int
	forwarderPort int
	logLevel      string
	dataDir       string

	dbDriver    string
	databaseURL string

	storage       string
	publicBaseURL string
	s3            S3Config

	sheetsURL  string
	sheetID    string
	sheetRange string

	coachPasswordHash string
	adminPasswordHash string
	sessionSecret     string
	sessionTTL        time.Duration

	stallTimeout     time.Duration
	progressInterval time.Duration
	requestTimeout   time.Duration

	allowedOrigins        []string
	googleCredentialsFile string
}

// Load reads an optional .env file from the working directory and then builds
// the configuration from the environment. Variables already present in the
// environment win over the file.
func Load() (*EnvConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return New()
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:             DefaultPort,
		forwarderPort:    DefaultForwarderPort,
		logLevel:         DefaultLogLevel,
		dataDir:          defaultDataDir(),
		dbDriver:         DefaultDBDriver,
		storage:          DefaultStorage,
		sheetID:          DefaultSheetID,
		sheetRange:       DefaultSheetRange,
		sessionTTL:       DefaultSessionTTL,
		stallTimeout:     DefaultStallTimeout,
		progressInterval: DefaultProgressInterval,
		requestTimeout:   DefaultRequestTimeout,
		s3: S3Config{
			Bucket: DefaultS3Bucket,
			Region: DefaultS3Region,
		},
	}

	var err error
	if cfg.port, err = portFromEnv(EnvPort, cfg.port); err != nil {
		return nil, err
	}
	if cfg.forwarderPort, err = portFromEnv(EnvForwarderPort, cfg.forwarderPort); err != nil {
		return nil, err
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if d := os.Getenv(EnvDBDriver); d != "" {
		d = strings.ToLower(d)
		if d != "sqlite" && d != "postgres" {
			return nil, fmt.Errorf("invalid %s: must be sqlite or postgres", EnvDBDriver)
		}
		cfg.dbDriver = d
	}
	cfg.databaseURL = os.Getenv(EnvDatabaseURL)
	if cfg.dbDriver == "postgres" && cfg.databaseURL == "" {
		return nil, fmt.Errorf("%s is required when %s=postgres", EnvDatabaseURL, EnvDBDriver)
	}

	if s := os.Getenv(EnvStorage); s != "" {
		s = strings.ToLower(s)
		if s != "local" && s != "s3" {
			return nil, fmt.Errorf("invalid %s: must be local or s3", EnvStorage)
		}
		cfg.storage = s
	}
	cfg.publicBaseURL = strings.TrimRight(os.Getenv(EnvPublicBaseURL), "/")
	if cfg.publicBaseURL == "" {
		cfg.publicBaseURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.port)
	}
	if v := os.Getenv(EnvS3Bucket); v != "" {
		cfg.s3.Bucket = v
	}
	if v := os.Getenv(EnvS3Region); v != "" {
		cfg.s3.Region = v
	}
	cfg.s3.Endpoint = os.Getenv(EnvS3Endpoint)
	cfg.s3.AccessKey = os.Getenv(EnvS3AccessKey)
	cfg.s3.SecretKey = os.Getenv(EnvS3SecretKey)

	cfg.sheetsURL = os.Getenv(EnvSheetsURL)
	if v := os.Getenv(EnvSheetID); v != "" {
		cfg.sheetID = v
	}
	if v := os.Getenv(EnvSheetRange); v != "" {
		cfg.sheetRange = v
	}

	cfg.coachPasswordHash = os.Getenv(EnvCoachPasswordHash)
	cfg.adminPasswordHash = os.Getenv(EnvAdminPasswordHash)
	cfg.sessionSecret = os.Getenv(EnvSessionSecret)

	if cfg.sessionTTL, err = durationFromEnv(EnvSessionTTL, cfg.sessionTTL); err != nil {
		return nil, err
	}
	if cfg.stallTimeout, err = durationFromEnv(EnvStallTimeout, cfg.stallTimeout); err != nil {
		return nil, err
	}
	if cfg.progressInterval, err = durationFromEnv(EnvProgressInterval, cfg.progressInterval); err != nil {
		return nil, err
	}
	if cfg.requestTimeout, err = durationFromEnv(EnvRequestTimeout, cfg.requestTimeout); err != nil {
		return nil, err
	}

	if ao := os.Getenv(EnvAllowedOrigins); ao != "" {
		for _, o := range strings.Split(ao, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.allowedOrigins = append(cfg.allowedOrigins, o)
			}
		}
	}

	cfg.googleCredentialsFile = os.Getenv(EnvGoogleCredentialsFile)

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// ForwarderPort returns the port of the Sheets forwarder process
func (c *EnvConfig) ForwarderPort() int {
	return c.forwarderPort
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBDriver returns "sqlite" or "postgres"
func (c *EnvConfig) DBDriver() string {
	return c.dbDriver
}

// DatabaseURL returns the DSN for the configured driver. For sqlite it
// defaults to a file inside the data directory.
func (c *EnvConfig) DatabaseURL() string {
	if c.databaseURL == "" && c.dbDriver == "sqlite" {
		return filepath.Join(c.dataDir, DBFilename)
	}
	return c.databaseURL
}

// Storage returns the object storage backend ("local" or "s3")
func (c *EnvConfig) Storage() string {
	return c.storage
}

// MediaDir returns the directory used by the local object store
func (c *EnvConfig) MediaDir() string {
	return filepath.Join(c.dataDir, "media")
}

// PublicBaseURL is the prefix used to build public locators for stored files
func (c *EnvConfig) PublicBaseURL() string {
	return c.publicBaseURL
}

func (c *EnvConfig) S3() S3Config {
	return c.s3
}

// SheetsURL returns the row-export forwarder endpoint. Empty disables the
// Google Sheets export.
func (c *EnvConfig) SheetsURL() string {
	return c.sheetsURL
}

func (c *EnvConfig) SheetID() string {
	return c.sheetID
}

func (c *EnvConfig) SheetRange() string {
	return c.sheetRange
}

func (c *EnvConfig) CoachPasswordHash() string {
	return c.coachPasswordHash
}

func (c *EnvConfig) AdminPasswordHash() string {
	return c.adminPasswordHash
}

func (c *EnvConfig) SessionSecret() string {
	return c.sessionSecret
}

func (c *EnvConfig) SessionTTL() time.Duration {
	return c.sessionTTL
}

// StallTimeout is the wait after which a pending upload may be escalated
func (c *EnvConfig) StallTimeout() time.Duration {
	return c.stallTimeout
}

// ProgressInterval is the tick of the simulated upload progress
func (c *EnvConfig) ProgressInterval() time.Duration {
	return c.progressInterval
}

// RequestTimeout bounds a detached storage request
func (c *EnvConfig) RequestTimeout() time.Duration {
	return c.requestTimeout
}

func (c *EnvConfig) AllowedOrigins() []string {
	return c.allowedOrigins
}

func (c *EnvConfig) GoogleCredentialsFile() string {
	return c.googleCredentialsFile
}

func portFromEnv(name string, def int) (int, error) {
	p := os.Getenv(name)
	if p == "" {
		return def, nil
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid %s: port must be between 1 and 65535", name)
	}
	return port, nil
}

func durationFromEnv(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", name)
	}
	return d, nil
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
