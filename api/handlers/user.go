package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/missingalert/missing-alert-api/api"
	"github.com/missingalert/missing-alert-api/apperrors"
	"github.com/missingalert/missing-alert-api/databases"
	"github.com/missingalert/missing-alert-api/models"
)

// OwnerStatsSource counts the cases a user reported
type OwnerStatsSource interface {
	OwnerStats(ctx context.Context, owner primitive.ObjectID) (*models.OwnerStats, error)
}

// User exists for dependency injection purposes
type User struct {
	DB      databases.UserDatabase
	Stats   OwnerStatsSource
	Revoker Revoker
}

// ProfileHandler returns the caller's profile
func (u User) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	requester, ok := api.RequesterFromContext(r.Context())
	if !ok {
		writeError(w, errUnauthenticated, "")
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := u.findUser(ctx, requester.ID)
	if err != nil {
		writeError(w, err, "Server error while fetching profile")
		return
	}
	writeSuccess(w, http.StatusOK, "", user)
}

// UpdateProfileHandler changes the caller's name and email
func (u User) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	requester, ok := api.RequesterFromContext(r.Context())
	if !ok {
		writeError(w, errUnauthenticated, "")
		return
	}
	var body models.ProfileUpdateRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err, "")
		return
	}
	name := strings.TrimSpace(body.Name)
	email := normalizeEmail(body.Email)
	if name == "" || email == "" {
		writeError(w, apperrors.Validation("Name and email are required"), "")
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	_, err := u.DB.FindOne(ctx, bson.M{"email": email, "_id": bson.M{"$ne": requester.ID}})
	if err == nil {
		writeError(w, apperrors.Conflict("Email is already taken"), "")
		return
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		writeError(w, err, "Server error while updating profile")
		return
	}

	err = u.DB.UpdateOne(ctx, bson.M{"_id": requester.ID}, bson.M{
		"$set": bson.M{"name": name, "email": email, "updatedAt": time.Now().UTC()},
	})
	if errors.Is(err, apperrors.ErrDuplicateKey) {
		writeError(w, apperrors.Conflict("Email is already taken"), "")
		return
	}
	if err != nil {
		writeError(w, err, "Server error while updating profile")
		return
	}

	user, err := u.findUser(ctx, requester.ID)
	if err != nil {
		writeError(w, err, "Server error while updating profile")
		return
	}
	writeSuccess(w, http.StatusOK, "Profile updated successfully", user)
}

// UserStatsHandler summarises the cases the caller reported
func (u User) UserStatsHandler(w http.ResponseWriter, r *http.Request) {
	requester, ok := api.RequesterFromContext(r.Context())
	if !ok {
		writeError(w, errUnauthenticated, "")
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	stats, err := u.Stats.OwnerStats(ctx, requester.ID)
	if err != nil {
		writeError(w, err, "Server error while fetching user statistics")
		return
	}
	writeSuccess(w, http.StatusOK, "", stats)
}

// DeleteAccountHandler deactivates the caller's account and frees its email address
func (u User) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	requester, ok := api.RequesterFromContext(r.Context())
	if !ok {
		writeError(w, errUnauthenticated, "")
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := u.findUser(ctx, requester.ID)
	if err != nil {
		writeError(w, err, "Server error while deleting account")
		return
	}

	now := time.Now().UTC()
	err = u.DB.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{
		"$set": bson.M{
			"isActive":  false,
			"email":     fmt.Sprintf("deleted_%d_%s", now.UnixMilli(), user.Email),
			"updatedAt": now,
		},
	})
	if err != nil {
		writeError(w, err, "Server error while deleting account")
		return
	}
	if err := u.Revoker.Revoke(r, api.BearerToken(r)); err != nil {
		zap.S().Warnw("failed to revoke token of deleted account", "userId", user.ID.Hex(), "error", err)
	}
	zap.S().Infow("account deleted", "userId", user.ID.Hex())
	writeSuccess(w, http.StatusOK, "Account deleted successfully", nil)
}

func (u User) findUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := u.DB.FindOne(ctx, bson.M{"_id": id})
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NotFound("User")
	}
	return user, err
}
