package lifecycle

import (
	"github.com/missingalert/missing-alert-api/apperrors"
	"github.com/missingalert/missing-alert-api/models"
)

// canMutate reports whether r may change the status of c: the owner or an admin.
func canMutate(c *models.Case, r models.Requester) bool {
	switch r.Role {
	case models.RoleAdmin:
		return true
	case models.RoleUser, models.RoleModerator:
		return c.ReportedBy == r.ID
	default:
		return false
	}
}

// checkLeave enforces AdminToLeave on the status the case is currently in.
func checkLeave(c *models.Case, next models.CaseStatus, r models.Requester) error {
	if c.Status == next || !transitions[c.Status].AdminToLeave {
		return nil
	}
	if r.Role == models.RoleAdmin {
		return nil
	}
	return apperrors.Forbidden("Case has been dismissed; only an administrator can change its status")
}
