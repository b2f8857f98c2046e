package config

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/missingalert/missing-alert-api/logging"
	"github.com/missingalert/missing-alert-api/models"
)

const (
	defaultPort           = "5000"
	defaultEnv            = "development"
	defaultJWTExpire      = 7 * 24 * time.Hour
	defaultMaxFileSize    = 10 << 20
	defaultDigestSchedule = "0 8 * * *"
	defaultFromName       = "Missing Alert"
)

var defaultAllowedFileTypes = []string{"jpeg", "jpg", "png", "gif", "webp"}

// Config holds the project config values
type Config struct {
	URL          string
	DatabaseName string
	BaseURL      string
	Port         string
	Env          string
	Version      string

	JWTSecret string
	JWTExpire time.Duration

	// CaseNumberLocation decides which calendar day a case is numbered under
	CaseNumberLocation *time.Location

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	SendGridAPIKey   string
	EmailFromAddress string
	EmailFromName    string

	MaxFileSize      int64
	AllowedFileTypes []string

	DigestSchedule string
}

// New sets up all config related services
func New() *Config {
	// a missing .env file is normal outside local development
	_ = godotenv.Load()

	env := getEnv("APP_ENV", defaultEnv)

	//setup zap logger and replace default logger
	logger, err := logging.New(env)
	if err != nil {
		logger = zap.NewExample()
	}
	_ = zap.ReplaceGlobals(logger)

	conf := &Config{
		URL:                 os.Getenv("DB_URI"),
		DatabaseName:        getEnv("DB_NAME", "missing-alert"),
		BaseURL:             os.Getenv("BASE_URL"),
		Port:                getEnv("PORT", defaultPort),
		Env:                 env,
		Version:             getEnv("APP_VERSION", "1.0.0"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		JWTExpire:           defaultJWTExpire,
		CaseNumberLocation:  time.Local,
		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		SendGridAPIKey:      os.Getenv("SENDGRID_API_KEY"),
		EmailFromAddress:    os.Getenv("EMAIL_FROM_ADDRESS"),
		EmailFromName:       getEnv("EMAIL_FROM_NAME", defaultFromName),
		MaxFileSize:         defaultMaxFileSize,
		AllowedFileTypes:    defaultAllowedFileTypes,
		DigestSchedule:      getEnv("DIGEST_SCHEDULE", defaultDigestSchedule),
	}

	if v := os.Getenv("JWT_EXPIRE"); v != "" {
		d, err := ParseExpiry(v)
		if err != nil {
			zap.S().Warnw("ignoring JWT_EXPIRE", "value", v, "error", err)
		} else {
			conf.JWTExpire = d
		}
	}
	if v := os.Getenv("CASE_NUMBER_TZ"); v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			zap.S().Warnw("ignoring CASE_NUMBER_TZ", "value", v, "error", err)
		} else {
			conf.CaseNumberLocation = loc
		}
	}
	if v := os.Getenv("MAX_FILE_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			zap.S().Warnw("ignoring MAX_FILE_SIZE", "value", v)
		} else {
			conf.MaxFileSize = n
		}
	}
	if v := os.Getenv("ALLOWED_FILE_TYPES"); v != "" {
		conf.AllowedFileTypes = splitList(v)
	}

	return conf
}

// Validate reports settings the service cannot start without
func (c *Config) Validate() error {
	if c.JWTSecret == "" && c.Env == "production" {
		return errors.New("JWT_SECRET is required in production")
	}
	if c.URL == "" {
		return errors.New("DB_URI is required")
	}
	return nil
}

// ImageHostConfigured reports whether all image host credentials are present
func (c *Config) ImageHostConfigured() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// ParseExpiry accepts Go durations and whole days written as "7d"
func ParseExpiry(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, errors.New("invalid day count")
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("expiry must be positive")
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err. The error itself is logged, never written.
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error, fields ...string) {
	if httpStatusCode >= http.StatusInternalServerError {
		zap.S().Errorw(message, "status", httpStatusCode, "error", err)
	} else {
		zap.S().Infow(message, "status", httpStatusCode, "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	_ = json.NewEncoder(w).Encode(models.Envelope{
		Success:   false,
		Message:   message,
		Errors:    fields,
		Timestamp: models.Now(time.Now()),
	})
}
