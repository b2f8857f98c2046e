package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/missingalert/missing-alert-api/api"
	"github.com/missingalert/missing-alert-api/lifecycle"
	"github.com/missingalert/missing-alert-api/models"
)

// CaseService is the case lifecycle as the handlers use it
type CaseService interface {
	CreateCase(ctx context.Context, owner models.Requester, in models.CaseInput) (*models.Case, error)
	UpdateStatus(ctx context.Context, caseID string, r models.Requester, status, notes string) (*lifecycle.StatusChange, error)
	DismissCase(ctx context.Context, caseID string, r models.Requester) (*lifecycle.Dismissal, error)
	GetCase(ctx context.Context, caseID string) (*models.Case, error)
	ListOwnedCases(ctx context.Context, owner primitive.ObjectID) ([]models.Case, error)
	ListPublicCases(ctx context.Context, q lifecycle.PublicQuery) (*models.CasePage, error)
	Stats(ctx context.Context) (*models.CaseStats, error)
}

// Case exists for dependency injection purposes
type Case struct {
	Cases CaseService
}

// CaseStatsHandler returns the public case statistics
func (c Case) CaseStatsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	stats, err := c.Cases.Stats(ctx)
	if err != nil {
		writeError(w, err, "Server error while fetching statistics")
		return
	}
	writeSuccess(w, http.StatusOK, "", stats)
}

// MyCasesHandler returns the caller's active cases, newest first
func (c Case) MyCasesHandler(w http.ResponseWriter, r *http.Request) {
	requester, ok := api.RequesterFromContext(r.Context())
	if !ok {
		writeError(w, errUnauthenticated, "")
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	cases, err := c.Cases.ListOwnedCases(ctx, requester.ID)
	if err != nil {
		writeError(w, err, "Server error while fetching your cases")
		return
	}
	count := len(cases)
	writeEnvelope(w, http.StatusOK, models.Envelope{Success: true, Data: cases, Count: &count})
}

// CasesHandler returns a page of public cases. Query parameters: page, limit, status
// (or "all") and search.
func (c Case) CasesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	// unparsable numbers fall back to the defaults
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	result, err := c.Cases.ListPublicCases(ctx, lifecycle.PublicQuery{
		Page:   page,
		Limit:  limit,
		Status: q.Get("status"),
		Search: q.Get("search"),
	})
	if err != nil {
		writeError(w, err, "Server error while fetching cases")
		return
	}
	zap.S().Debugw("listed public cases", "count", len(result.Cases), "total", result.Pagination.Total)
	writeEnvelope(w, http.StatusOK, models.Envelope{
		Success:    true,
		Data:       result.Cases,
		Pagination: &result.Pagination,
	})
}

// CreateCaseHandler reports a new missing person case owned by the caller
func (c Case) CreateCaseHandler(w http.ResponseWriter, r *http.Request) {
	requester, ok := api.RequesterFromContext(r.Context())
	if !ok {
		writeError(w, errUnauthenticated, "")
		return
	}
	var in models.CaseInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err, "")
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	created, err := c.Cases.CreateCase(ctx, requester, in)
	if err != nil {
		writeError(w, err, "Server error while creating case")
		return
	}
	zap.S().Infow("case created", "caseNumber", created.CaseNumber, "reportedBy", requester.ID.Hex())
	writeSuccess(w, http.StatusCreated, "Missing person case created successfully", created)
}

// UpdateCaseStatusHandler moves a case to a new status
func (c Case) UpdateCaseStatusHandler(w http.ResponseWriter, r *http.Request) {
	requester, ok := api.RequesterFromContext(r.Context())
	if !ok {
		writeError(w, errUnauthenticated, "")
		return
	}
	var body models.StatusUpdateRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err, "")
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	change, err := c.Cases.UpdateStatus(ctx, mux.Vars(r)["id"], requester, body.Status, body.Notes)
	if err != nil {
		writeError(w, err, "Server error while updating case status")
		return
	}
	writeSuccess(w, http.StatusOK, fmt.Sprintf("Case status updated from %s to %s", change.OldStatus, change.NewStatus), change)
}

// DismissCaseHandler withdraws a case from public view
func (c Case) DismissCaseHandler(w http.ResponseWriter, r *http.Request) {
	requester, ok := api.RequesterFromContext(r.Context())
	if !ok {
		writeError(w, errUnauthenticated, "")
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dismissal, err := c.Cases.DismissCase(ctx, mux.Vars(r)["id"], requester)
	if err != nil {
		writeError(w, err, "Server error while dismissing case")
		return
	}
	writeSuccess(w, http.StatusOK, "Case dismissed successfully", dismissal)
}

// CaseByIDHandler returns one publicly accessible case
func (c Case) CaseByIDHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	found, err := c.Cases.GetCase(ctx, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, "Server error while fetching case")
		return
	}
	writeSuccess(w, http.StatusOK, "", found)
}
