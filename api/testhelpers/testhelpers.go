// Package testhelpers builds requests and reads responses in handler tests
package testhelpers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/missingalert/missing-alert-api/api"
	"github.com/missingalert/missing-alert-api/models"
)

// NewRequest returns a request carrying body encoded as JSON, or no body when nil
func NewRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AsRequester returns req as if the auth middleware had accepted requester, with the
// given route variables set.
func AsRequester(req *http.Request, requester models.Requester, vars map[string]string) *http.Request {
	req = req.WithContext(api.WithRequester(req.Context(), requester))
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

// Envelope is a response envelope with the data left raw for the caller to decode
type Envelope struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message"`
	Data       json.RawMessage    `json:"data"`
	Errors     []string           `json:"errors"`
	Pagination *models.Pagination `json:"pagination"`
	Count      *int               `json:"count"`
	Token      string             `json:"token"`
	Timestamp  string             `json:"timestamp"`
}

// DecodeEnvelope decodes the recorded response body, and data into out when non-nil
func DecodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	if out != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}
