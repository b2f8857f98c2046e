package api

import (
	"context"
	"time"

	"github.com/missingalert/missing-alert-api/models"
)

// QueryTimeout is the default timeout for database queries
const QueryTimeout = 10 * time.Second

type contextKey int

const (
	requesterKey contextKey = iota
	authFailureKey
	requestIDKey
)

// WithQueryTimeout creates a context with query timeout
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, QueryTimeout)
}

// WithRequester stores the authenticated caller on ctx
func WithRequester(ctx context.Context, r models.Requester) context.Context {
	return context.WithValue(ctx, requesterKey, r)
}

// RequesterFromContext returns the caller stored by the auth middleware
func RequesterFromContext(ctx context.Context) (models.Requester, bool) {
	r, ok := ctx.Value(requesterKey).(models.Requester)
	return r, ok
}

// RequestIDFromContext returns the id assigned by MetricsMiddleware, if any
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
