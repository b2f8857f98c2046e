package config

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missingalert/missing-alert-api/models"
)

func TestNew(t *testing.T) {
	os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	os.Setenv("DB_NAME", "test")
	os.Setenv("JWT_EXPIRE", "3d")
	os.Setenv("ALLOWED_FILE_TYPES", "PNG, jpg ,")
	os.Setenv("CASE_NUMBER_TZ", "UTC")
	defer os.Unsetenv("JWT_EXPIRE")
	defer os.Unsetenv("ALLOWED_FILE_TYPES")
	defer os.Unsetenv("CASE_NUMBER_TZ")

	conf := New()

	assert.Equal(t, "mongodb://127.0.0.1:27017", conf.URL)
	assert.Equal(t, "test", conf.DatabaseName)
	assert.Equal(t, 72*time.Hour, conf.JWTExpire)
	assert.Equal(t, []string{"png", "jpg"}, conf.AllowedFileTypes)
	assert.Equal(t, time.UTC, conf.CaseNumberLocation)
	assert.Equal(t, int64(10<<20), conf.MaxFileSize)
	assert.Equal(t, "0 8 * * *", conf.DigestSchedule)
}

func TestValidate(t *testing.T) {
	conf := &Config{URL: "mongodb://db", Env: "production"}
	assert.Error(t, conf.Validate())

	conf.JWTSecret = "secret"
	assert.NoError(t, conf.Validate())

	conf.URL = ""
	assert.Error(t, conf.Validate())
}

func TestParseExpiry(t *testing.T) {
	d, err := ParseExpiry("7d")
	assert.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, d)

	d, err = ParseExpiry("90m")
	assert.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	for _, bad := range []string{"d", "-1d", "soon", "-5m"} {
		_, err = ParseExpiry(bad)
		assert.Error(t, err, bad)
	}
}

func TestErrorStatus(t *testing.T) {
	rr := httptest.NewRecorder()

	ErrorStatus("Missing required fields: description", http.StatusBadRequest, rr, errors.New("bad request"), "description")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var body models.Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "Missing required fields: description", body.Message)
	assert.Equal(t, []string{"description"}, body.Errors)
	assert.NotEmpty(t, body.Timestamp)
	assert.NotContains(t, rr.Body.String(), "bad request")
}
