package lifecycle

import (
	"github.com/missingalert/missing-alert-api/apperrors"
	"github.com/missingalert/missing-alert-api/models"
)

// Visibility is the pair of flags that decide whether a case is publicly listed
type Visibility struct {
	IsPublic bool
	IsActive bool
}

// Transition describes what entering a status does to a case beyond setting the field.
type Transition struct {
	// Visibility, when set, overrides both flags on entry.
	Visibility *Visibility
	// AdminToLeave freezes the case in this status for everyone but administrators.
	AdminToLeave bool
}

var hidden = &Visibility{IsPublic: false, IsActive: false}

// statusOrder is the order statuses are listed in error messages.
var statusOrder = []models.CaseStatus{
	models.StatusActive,
	models.StatusFound,
	models.StatusClosed,
	models.StatusDismissed,
}

var transitions = map[models.CaseStatus]Transition{
	models.StatusActive:    {},
	models.StatusFound:     {},
	models.StatusClosed:    {},
	models.StatusDismissed: {Visibility: hidden, AdminToLeave: true},
}

// AllowedStatuses lists every status a case may be moved to
func AllowedStatuses() []string {
	out := make([]string, 0, len(statusOrder))
	for _, s := range statusOrder {
		out = append(out, string(s))
	}
	return out
}

// ParseStatus validates s against the transition table
func ParseStatus(s string) (models.CaseStatus, error) {
	status := models.CaseStatus(s)
	if _, ok := transitions[status]; !ok {
		return "", apperrors.InvalidStatus(AllowedStatuses())
	}
	return status, nil
}

// TransitionFor returns the table entry for status
func TransitionFor(status models.CaseStatus) Transition {
	return transitions[status]
}

// enter moves c into status and applies the entry's visibility override.
func enter(c *models.Case, status models.CaseStatus) {
	c.Status = status
	if v := transitions[status].Visibility; v != nil {
		c.IsPublic = v.IsPublic
		c.IsActive = v.IsActive
	}
}

// Hides reports whether entering status withdraws a case from public view
func Hides(status models.CaseStatus) bool {
	v := transitions[status].Visibility
	return v != nil && !v.IsPublic
}
