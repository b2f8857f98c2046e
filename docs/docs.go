// Package docs Missing Alert API.
//
// Documentation of the Missing Alert API.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//
//     Consumes:
//     - application/json
//     - multipart/form-data
//
//     Produces:
//     - application/json
//
//     Security:
//     - bearer
//
//    SecurityDefinitions:
//    bearer:
//      type: apiKey
//      name: Authorization
//      in: header
//
// swagger:meta
package docs

import (
	"github.com/missingalert/missing-alert-api/models"
)

// swagger:route GET /api/health health healthEndpointID
// Reports whether the api is alive.
// responses:
//   200: healthResponse

// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// swagger:route GET /api/cases cases listPublicCases
// Lists public active cases, newest first.
// responses:
//   200: casePageResponse

// A page of public cases
// swagger:response casePageResponse
type casePageResponseWrapper struct {
	// in:body
	Body struct {
		Success    bool              `json:"success"`
		Data       []models.Case     `json:"data"`
		Pagination models.Pagination `json:"pagination"`
	}
}

// swagger:parameters listPublicCases
type listPublicCasesParams struct {
	// in:query
	Page int `json:"page"`
	// in:query
	Limit int `json:"limit"`
	// in:query
	Status string `json:"status"`
	// in:query
	Priority string `json:"priority"`
	// in:query
	Category string `json:"category"`
	// in:query
	Search string `json:"search"`
}

// swagger:route POST /api/cases cases createCase
// Reports a missing person. Requires a bearer token.
// responses:
//   201: caseResponse

// swagger:parameters createCase
type createCaseParams struct {
	// in:body
	Body models.CaseInput
}

// swagger:route GET /api/cases/{id} cases caseByID
// Gets a single case by id.
// responses:
//   200: caseResponse

// swagger:route DELETE /api/cases/{id}/dismiss cases dismissCase
// Dismisses a case. Owner or administrator only.
// responses:
//   200: caseResponse

// swagger:parameters caseByID dismissCase updateCaseStatus
type caseIDParam struct {
	// in:path
	// required: true
	ID string `json:"id"`
}

// swagger:route PUT /api/cases/{id}/status cases updateCaseStatus
// Moves a case to another status. Owner or administrator only.
// responses:
//   200: caseResponse

// swagger:parameters updateCaseStatus
type updateCaseStatusParams struct {
	// in:body
	Body models.StatusUpdateRequest
}

// swagger:response caseResponse
type caseResponseWrapper struct {
	// in:body
	Body struct {
		Success bool        `json:"success"`
		Message string      `json:"message"`
		Data    models.Case `json:"data"`
	}
}

// swagger:route GET /api/cases/stats/summary cases caseStats
// Counts public cases by status.
// responses:
//   200: caseStatsResponse

// swagger:response caseStatsResponse
type caseStatsResponseWrapper struct {
	// in:body
	Body struct {
		Success bool             `json:"success"`
		Data    models.CaseStats `json:"data"`
	}
}

// swagger:route POST /api/auth/login auth login
// Exchanges credentials for a token.
// responses:
//   200: authResponse

// swagger:parameters login
type loginParams struct {
	// in:body
	Body models.LoginRequest
}

// swagger:route POST /api/auth/register auth register
// Creates an account.
// responses:
//   201: authResponse

// swagger:parameters register
type registerParams struct {
	// in:body
	Body models.RegisterRequest
}

// swagger:response authResponse
type authResponseWrapper struct {
	// in:body
	Body models.AuthResponse
}

// swagger:route POST /api/upload/images upload uploadImages
// Stores up to ten case photos.
// responses:
//   200: uploadResponse

// swagger:response uploadResponse
type uploadResponseWrapper struct {
	// in:body
	Body struct {
		Success bool                `json:"success"`
		Message string              `json:"message"`
		Data    models.UploadResult `json:"data"`
	}
}
