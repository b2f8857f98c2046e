package lifecycle

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/missingalert/missing-alert-api/models"
)

// Store is the persistence the lifecycle manager relies on. FindByID returns
// apperrors.ErrNotFound for unknown ids and Save returns apperrors.ErrDuplicateKey when
// the case number is already taken.
type Store interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Case, error)
	Save(ctx context.Context, c *models.Case) error
	CountCreatedBetween(ctx context.Context, start, end time.Time) (int64, error)
	FindMany(ctx context.Context, filter models.CaseFilter, sort models.CaseSort, window models.PageWindow) ([]models.Case, error)
	CountMatching(ctx context.Context, filter models.CaseFilter) (int64, error)
}

// StatusChange is the confirmation returned by UpdateStatus
type StatusChange struct {
	CaseID     primitive.ObjectID `json:"caseId"`
	CaseNumber string             `json:"caseNumber"`
	OldStatus  models.CaseStatus  `json:"oldStatus"`
	NewStatus  models.CaseStatus  `json:"newStatus"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// Dismissal is the confirmation returned by DismissCase
type Dismissal struct {
	CaseID         primitive.ObjectID `json:"caseId"`
	CaseNumber     string             `json:"caseNumber"`
	PreviousStatus models.CaseStatus  `json:"-"`
	DismissedAt    time.Time          `json:"dismissedAt"`
}

// Observer is told about every committed mutation. Implementations must not block;
// anything slow belongs on its own goroutine.
type Observer interface {
	CaseCreated(ctx context.Context, c models.Case)
	StatusChanged(ctx context.Context, c models.Case, change StatusChange)
	CaseDismissed(ctx context.Context, c models.Case, d Dismissal)
	CaseNumberFallback(ctx context.Context, err error)
}

// Observers fans every event out to each observer in order
type Observers []Observer

// CaseCreated implements Observer
func (o Observers) CaseCreated(ctx context.Context, c models.Case) {
	for _, obs := range o {
		obs.CaseCreated(ctx, c)
	}
}

// StatusChanged implements Observer
func (o Observers) StatusChanged(ctx context.Context, c models.Case, change StatusChange) {
	for _, obs := range o {
		obs.StatusChanged(ctx, c, change)
	}
}

// CaseDismissed implements Observer
func (o Observers) CaseDismissed(ctx context.Context, c models.Case, d Dismissal) {
	for _, obs := range o {
		obs.CaseDismissed(ctx, c, d)
	}
}

// CaseNumberFallback implements Observer
func (o Observers) CaseNumberFallback(ctx context.Context, err error) {
	for _, obs := range o {
		obs.CaseNumberFallback(ctx, err)
	}
}

// NopObserver ignores every event
type NopObserver struct{}

// CaseCreated implements Observer
func (NopObserver) CaseCreated(context.Context, models.Case) {}

// StatusChanged implements Observer
func (NopObserver) StatusChanged(context.Context, models.Case, StatusChange) {}

// CaseDismissed implements Observer
func (NopObserver) CaseDismissed(context.Context, models.Case, Dismissal) {}

// CaseNumberFallback implements Observer
func (NopObserver) CaseNumberFallback(context.Context, error) {}
