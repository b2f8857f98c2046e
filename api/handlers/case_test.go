package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/missingalert/missing-alert-api/api/handlers"
	"github.com/missingalert/missing-alert-api/api/testhelpers"
	"github.com/missingalert/missing-alert-api/apperrors"
	"github.com/missingalert/missing-alert-api/databases"
	"github.com/missingalert/missing-alert-api/databases/mocks"
	"github.com/missingalert/missing-alert-api/lifecycle"
	"github.com/missingalert/missing-alert-api/models"
)

type mockCaseService struct {
	mock.Mock
}

func (m *mockCaseService) CreateCase(ctx context.Context, owner models.Requester, in models.CaseInput) (*models.Case, error) {
	ret := m.Called(ctx, owner, in)
	c, _ := ret.Get(0).(*models.Case)
	return c, ret.Error(1)
}

func (m *mockCaseService) UpdateStatus(ctx context.Context, caseID string, r models.Requester, status, notes string) (*lifecycle.StatusChange, error) {
	ret := m.Called(ctx, caseID, r, status, notes)
	c, _ := ret.Get(0).(*lifecycle.StatusChange)
	return c, ret.Error(1)
}

func (m *mockCaseService) DismissCase(ctx context.Context, caseID string, r models.Requester) (*lifecycle.Dismissal, error) {
	ret := m.Called(ctx, caseID, r)
	d, _ := ret.Get(0).(*lifecycle.Dismissal)
	return d, ret.Error(1)
}

func (m *mockCaseService) GetCase(ctx context.Context, caseID string) (*models.Case, error) {
	ret := m.Called(ctx, caseID)
	c, _ := ret.Get(0).(*models.Case)
	return c, ret.Error(1)
}

func (m *mockCaseService) ListOwnedCases(ctx context.Context, owner primitive.ObjectID) ([]models.Case, error) {
	ret := m.Called(ctx, owner)
	c, _ := ret.Get(0).([]models.Case)
	return c, ret.Error(1)
}

func (m *mockCaseService) ListPublicCases(ctx context.Context, q lifecycle.PublicQuery) (*models.CasePage, error) {
	ret := m.Called(ctx, q)
	p, _ := ret.Get(0).(*models.CasePage)
	return p, ret.Error(1)
}

func (m *mockCaseService) Stats(ctx context.Context) (*models.CaseStats, error) {
	ret := m.Called(ctx)
	s, _ := ret.Get(0).(*models.CaseStats)
	return s, ret.Error(1)
}

var jane = models.Requester{ID: primitive.NewObjectID(), Name: "Jane", Role: models.RoleUser}

func TestCase_CasesHandler(t *testing.T) {
	svc := &mockCaseService{}
	svc.On("ListPublicCases", mock.Anything, lifecycle.PublicQuery{Page: 2, Limit: 5, Status: "found", Search: "ann"}).Return(&models.CasePage{
		Cases:      []models.Case{{CaseNumber: "MA-20250715-001"}},
		Pagination: models.Pagination{Page: 2, Limit: 5, Total: 6, Pages: 2},
	}, nil)

	req := testhelpers.NewRequest(t, "GET", "/api/cases?page=2&limit=5&status=found&search=ann", nil)
	rr := httptest.NewRecorder()
	http.HandlerFunc(handlers.Case{Cases: svc}.CasesHandler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var cases []models.Case
	env := testhelpers.DecodeEnvelope(t, rr, &cases)
	assert.True(t, env.Success)
	require.Len(t, cases, 1)
	assert.Equal(t, "MA-20250715-001", cases[0].CaseNumber)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 2, env.Pagination.Pages)
	assert.NotEmpty(t, env.Timestamp)
}

func TestCase_CasesHandlerBadQueryFallsBackToDefaults(t *testing.T) {
	svc := &mockCaseService{}
	svc.On("ListPublicCases", mock.Anything, lifecycle.PublicQuery{}).Return(&models.CasePage{Cases: []models.Case{}}, nil)

	req := testhelpers.NewRequest(t, "GET", "/api/cases?page=abc&limit=", nil)
	rr := httptest.NewRecorder()
	http.HandlerFunc(handlers.Case{Cases: svc}.CasesHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestCase_CasesHandlerInvalidStatus(t *testing.T) {
	svc := &mockCaseService{}
	svc.On("ListPublicCases", mock.Anything, mock.Anything).Return(nil, apperrors.InvalidStatus(lifecycle.AllowedStatuses()))

	req := testhelpers.NewRequest(t, "GET", "/api/cases?status=lost", nil)
	rr := httptest.NewRecorder()
	http.HandlerFunc(handlers.Case{Cases: svc}.CasesHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	env := testhelpers.DecodeEnvelope(t, rr, nil)
	assert.False(t, env.Success)
	assert.Equal(t, "Invalid status. Must be one of: active, found, closed, dismissed", env.Message)
}

func TestCase_MyCasesHandler(t *testing.T) {
	svc := &mockCaseService{}
	svc.On("ListOwnedCases", mock.Anything, jane.ID).Return([]models.Case{{CaseNumber: "A"}, {CaseNumber: "B"}}, nil)

	req := testhelpers.AsRequester(testhelpers.NewRequest(t, "GET", "/api/cases/my", nil), jane, nil)
	rr := httptest.NewRecorder()
	http.HandlerFunc(handlers.Case{Cases: svc}.MyCasesHandler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	env := testhelpers.DecodeEnvelope(t, rr, nil)
	require.NotNil(t, env.Count)
	assert.Equal(t, 2, *env.Count)
}

func TestCase_MyCasesHandlerEmptyHasZeroCount(t *testing.T) {
	svc := &mockCaseService{}
	svc.On("ListOwnedCases", mock.Anything, jane.ID).Return([]models.Case{}, nil)

	req := testhelpers.AsRequester(testhelpers.NewRequest(t, "GET", "/api/cases/my", nil), jane, nil)
	rr := httptest.NewRecorder()
	http.HandlerFunc(handlers.Case{Cases: svc}.MyCasesHandler).ServeHTTP(rr, req)

	env := testhelpers.DecodeEnvelope(t, rr, nil)
	require.NotNil(t, env.Count)
	assert.Equal(t, 0, *env.Count)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestCase_CreateCaseHandler(t *testing.T) {
	svc := &mockCaseService{}
	created := &models.Case{ID: primitive.NewObjectID(), CaseNumber: "MA-20250715-003", Status: models.StatusActive}
	svc.On("CreateCase", mock.Anything, jane, mock.MatchedBy(func(in models.CaseInput) bool {
		return in.MissingPerson.Name == "Ann" && in.Description == "Left home"
	})).Return(created, nil)

	body := map[string]interface{}{
		"description":   "Left home",
		"missingPerson": map[string]interface{}{"name": "Ann", "age": "14", "gender": "female"},
	}
	req := testhelpers.AsRequester(testhelpers.NewRequest(t, "POST", "/api/cases", body), jane, nil)
	rr := httptest.NewRecorder()
	http.HandlerFunc(handlers.Case{Cases: svc}.CreateCaseHandler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var got models.Case
	env := testhelpers.DecodeEnvelope(t, rr, &got)
	assert.Equal(t, "Missing person case created successfully", env.Message)
	assert.Equal(t, "MA-20250715-003", got.CaseNumber)
}

func TestCase_CreateCaseHandlerValidation(t *testing.T) {
	svc := &mockCaseService{}
	svc.On("CreateCase", mock.Anything, jane, mock.Anything).Return(nil, apperrors.MissingFields("description", "lastSeenDate"))

	req := testhelpers.AsRequester(testhelpers.NewRequest(t, "POST", "/api/cases", map[string]string{}), jane, nil)
	rr := httptest.NewRecorder()
	http.HandlerFunc(handlers.Case{Cases: svc}.CreateCaseHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	env := testhelpers.DecodeEnvelope(t, rr, nil)
	assert.Equal(t, "Missing required fields: description, lastSeenDate", env.Message)
	assert.Equal(t, []string{"description", "lastSeenDate"}, env.Errors)
}

func caseBody(age interface{}) map[string]interface{} {
	return map[string]interface{}{
		"description":       "Last seen leaving the library",
		"missingPerson":     map[string]interface{}{"name": "Jane Doe", "age": age, "gender": "female"},
		"lastKnownLocation": map[string]interface{}{"address": "1 Main St", "city": "Springfield", "state": "IL"},
		"lastSeenDate":      "2025-07-14",
		"contactInfo": map[string]interface{}{
			"primaryContact": map[string]interface{}{"name": "John Doe", "phone": "555-0100"},
		},
	}
}

func TestCase_CreateCaseHandlerBlankAgeIsMissing(t *testing.T) {
	for _, age := range []interface{}{"", "   ", nil} {
		db := &mocks.CaseDatabase{}
		c := handlers.Case{Cases: lifecycle.NewManager(databases.NewCaseStore(db))}

		req := testhelpers.AsRequester(testhelpers.NewRequest(t, "POST", "/api/cases", caseBody(age)), jane, nil)
		rr := httptest.NewRecorder()
		http.HandlerFunc(c.CreateCaseHandler).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code, "age %q", age)
		env := testhelpers.DecodeEnvelope(t, rr, nil)
		assert.Equal(t, "Missing required fields: missingPerson.age", env.Message)
		assert.Equal(t, []string{"missingPerson.age"}, env.Errors)
		db.AssertNotCalled(t, "ReplaceOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestCase_CreateCaseHandlerAgeFormats(t *testing.T) {
	for _, age := range []interface{}{" 30 ", 30.0, "30"} {
		db := &mocks.CaseDatabase{}
		db.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(0), nil)
		db.On("ReplaceOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		c := handlers.Case{Cases: lifecycle.NewManager(databases.NewCaseStore(db))}

		req := testhelpers.AsRequester(testhelpers.NewRequest(t, "POST", "/api/cases", caseBody(age)), jane, nil)
		rr := httptest.NewRecorder()
		http.HandlerFunc(c.CreateCaseHandler).ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var got models.Case
		testhelpers.DecodeEnvelope(t, rr, &got)
		assert.Equal(t, 30, got.MissingPerson.Age)
	}
}

func TestCase_CreateCaseHandlerAgeNotANumber(t *testing.T) {
	c := handlers.Case{Cases: lifecycle.NewManager(databases.NewCaseStore(&mocks.CaseDatabase{}))}

	req := testhelpers.AsRequester(testhelpers.NewRequest(t, "POST", "/api/cases", caseBody("thirty")), jane, nil)
	rr := httptest.NewRecorder()
	http.HandlerFunc(c.CreateCaseHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, []string{"missingPerson.age"}, testhelpers.DecodeEnvelope(t, rr, nil).Errors)
}

func TestCase_CreateCaseHandlerMalformedBody(t *testing.T) {
	svc := &mockCaseService{}
	req := testhelpers.AsRequester(httptest.NewRequest("POST", "/api/cases", nil), jane, nil)
	req.Body = http.NoBody
	rr := httptest.NewRecorder()
	http.HandlerFunc(handlers.Case{Cases: svc}.CreateCaseHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "CreateCase", mock.Anything, mock.Anything, mock.Anything)
}

func TestCase_CreateCaseHandlerUnauthenticated(t *testing.T) {
	req := testhelpers.NewRequest(t, "POST", "/api/cases", map[string]string{})
	rr := httptest.NewRecorder()
	http.HandlerFunc(handlers.Case{Cases: &mockCaseService{}}.CreateCaseHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCase_UpdateCaseStatusHandler(t *testing.T) {
	svc := &mockCaseService{}
	caseID := primitive.NewObjectID()
	svc.On("UpdateStatus", mock.Anything, caseID.Hex(), jane, "found", "Home safe").Return(&lifecycle.StatusChange{
		CaseID:     caseID,
		CaseNumber: "MA-20250715-001",
		OldStatus:  models.StatusActive,
		NewStatus:  models.StatusFound,
		UpdatedAt:  time.Date(2025, 7, 15, 10, 0, 0, 0, time.UTC),
	}, nil)

	req := testhelpers.NewRequest(t, "PUT", "/api/cases/"+caseID.Hex()+"/status", map[string]string{"status": "found", "notes": "Home safe"})
	req = testhelpers.AsRequester(req, jane, map[string]string{"id": caseID.Hex()})
	rr := httptest.NewRecorder()
	http.HandlerFunc(handlers.Case{Cases: svc}.UpdateCaseStatusHandler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got lifecycle.StatusChange
	env := testhelpers.DecodeEnvelope(t, rr, &got)
	assert.Equal(t, "Case status updated from active to found", env.Message)
	assert.Equal(t, models.StatusFound, got.NewStatus)
	assert.Equal(t, "MA-20250715-001", got.CaseNumber)
}

func TestCase_UpdateCaseStatusHandlerErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"forbidden", apperrors.Forbidden("Access denied. Only the case reporter can update status."), http.StatusForbidden, "Access denied. Only the case reporter can update status."},
		{"not found", apperrors.NotFound("Case"), http.StatusNotFound, "Case not found"},
		{"malformed id", apperrors.MalformedID("case"), http.StatusBadRequest, "Invalid case ID format"},
		{"internal", errors.New("connection reset by peer"), http.StatusInternalServerError, "Server error while updating case status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockCaseService{}
			svc.On("UpdateStatus", mock.Anything, "abc", jane, "closed", "").Return(nil, tt.err)

			req := testhelpers.NewRequest(t, "PUT", "/api/cases/abc/status", map[string]string{"status": "closed"})
			req = testhelpers.AsRequester(req, jane, map[string]string{"id": "abc"})
			rr := httptest.NewRecorder()
			http.HandlerFunc(handlers.Case{Cases: svc}.UpdateCaseStatusHandler).ServeHTTP(rr, req)

			assert.Equal(t, tt.code, rr.Code)
			env := testhelpers.DecodeEnvelope(t, rr, nil)
			assert.Equal(t, tt.message, env.Message)
			assert.NotContains(t, rr.Body.String(), "connection reset")
		})
	}
}

func TestCase_DismissCaseHandler(t *testing.T) {
	svc := &mockCaseService{}
	caseID := primitive.NewObjectID()
	svc.On("DismissCase", mock.Anything, caseID.Hex(), jane).Return(&lifecycle.Dismissal{
		CaseID:         caseID,
		CaseNumber:     "MA-20250715-001",
		PreviousStatus: models.StatusActive,
		DismissedAt:    time.Date(2025, 7, 15, 10, 0, 0, 0, time.UTC),
	}, nil)

	req := testhelpers.AsRequester(testhelpers.NewRequest(t, "DELETE", "/api/cases/"+caseID.Hex()+"/dismiss", nil), jane, map[string]string{"id": caseID.Hex()})
	rr := httptest.NewRecorder()
	http.HandlerFunc(handlers.Case{Cases: svc}.DismissCaseHandler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	env := testhelpers.DecodeEnvelope(t, rr, nil)
	assert.Equal(t, "Case dismissed successfully", env.Message)
	assert.Contains(t, string(env.Data), `"caseNumber":"MA-20250715-001"`)
	assert.NotContains(t, string(env.Data), "PreviousStatus")
}

func TestCase_CaseByIDHandlerNotPublic(t *testing.T) {
	svc := &mockCaseService{}
	svc.On("GetCase", mock.Anything, "64b000000000000000000001").Return(nil, apperrors.Forbidden("Case is not publicly accessible"))

	req := testhelpers.AsRequester(testhelpers.NewRequest(t, "GET", "/api/cases/64b000000000000000000001", nil), jane, map[string]string{"id": "64b000000000000000000001"})
	rr := httptest.NewRecorder()
	http.HandlerFunc(handlers.Case{Cases: svc}.CaseByIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Case is not publicly accessible", testhelpers.DecodeEnvelope(t, rr, nil).Message)
}

func TestCase_CaseStatsHandler(t *testing.T) {
	svc := &mockCaseService{}
	svc.On("Stats", mock.Anything).Return(&models.CaseStats{ActiveCases: 4, FoundCases: 1, TotalCases: 5, SuccessRate: 20}, nil)

	req := testhelpers.NewRequest(t, "GET", "/api/cases/stats/summary", nil)
	rr := httptest.NewRecorder()
	http.HandlerFunc(handlers.Case{Cases: svc}.CaseStatsHandler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var stats models.CaseStats
	testhelpers.DecodeEnvelope(t, rr, &stats)
	assert.Equal(t, 20.0, stats.SuccessRate)
	assert.Equal(t, int64(5), stats.TotalCases)
}

func TestCase_CaseStatsHandlerReportsZeroRecentCases(t *testing.T) {
	svc := &mockCaseService{}
	svc.On("Stats", mock.Anything).Return(&models.CaseStats{ActiveCases: 2, TotalCases: 2}, nil)

	rr := httptest.NewRecorder()
	http.HandlerFunc(handlers.Case{Cases: svc}.CaseStatsHandler).ServeHTTP(rr, testhelpers.NewRequest(t, "GET", "/api/cases/stats/summary", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var data map[string]interface{}
	testhelpers.DecodeEnvelope(t, rr, &data)
	assert.Contains(t, data, "recentCases")
	assert.EqualValues(t, 0, data["recentCases"])
}
