package handlers

import (
	"errors"
	"net"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/missingalert/missing-alert-api/api"
	"github.com/missingalert/missing-alert-api/apperrors"
	tokens "github.com/missingalert/missing-alert-api/auth"
	"github.com/missingalert/missing-alert-api/databases"
	"github.com/missingalert/missing-alert-api/models"
)

const minPasswordLength = 6

var errUnauthenticated = apperrors.Unauthorized(api.MsgNoToken)

// Welcomer greets newly registered users
type Welcomer interface {
	Welcome(u models.User)
}

// Revoker invalidates bearer tokens
type Revoker interface {
	Revoke(r *http.Request, token string) error
}

// Auth exists for dependency injection purposes
type Auth struct {
	DB       databases.UserDatabase
	Tokens   *tokens.TokenIssuer
	Welcomer Welcomer
	Revoker  Revoker
}

// RegisterHandler creates an account and signs the new user in
func (a Auth) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var body models.RegisterRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err, "")
		return
	}
	name := strings.TrimSpace(body.Name)
	email := normalizeEmail(body.Email)
	if name == "" || email == "" || body.Password == "" {
		writeError(w, apperrors.Validation("Please provide name, email, and password"), "")
		return
	}
	if len(body.Password) < minPasswordLength {
		writeError(w, apperrors.Validation("Password must be at least 6 characters long", "password"), "")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		writeError(w, apperrors.Validation("Please provide a valid email", "email"), "")
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	_, err := a.DB.FindOne(ctx, bson.M{"email": email})
	if err == nil {
		writeError(w, apperrors.Conflict("User with this email already exists"), "")
		return
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		writeError(w, err, "Server error during registration")
		return
	}

	hash, err := tokens.HashPassword(body.Password)
	if err != nil {
		writeError(w, err, "Server error during registration")
		return
	}

	now := time.Now().UTC()
	ip, userAgent := clientInfo(r)
	user := models.User{
		Name:        name,
		Email:       email,
		Password:    hash,
		Role:        models.RoleUser,
		IsActive:    true,
		LastLogin:   &now,
		LoginCount:  1,
		IPAddress:   ip,
		UserAgent:   userAgent,
		Preferences: models.DefaultPreferences(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	user.ID, err = a.DB.InsertOne(ctx, user)
	if errors.Is(err, apperrors.ErrDuplicateKey) {
		writeError(w, apperrors.Conflict("User with this email already exists"), "")
		return
	}
	if err != nil {
		writeError(w, err, "Server error during registration")
		return
	}

	token, err := a.Tokens.Issue(user.ID.Hex())
	if err != nil {
		writeError(w, err, "Server error during registration")
		return
	}

	zap.S().Infow("user registered", "userId", user.ID.Hex())
	a.Welcomer.Welcome(user)
	writeEnvelope(w, http.StatusCreated, models.Envelope{
		Success: true,
		Message: "User registered successfully",
		Token:   token,
		Data:    models.AuthResponse{User: user},
	})
}

// LoginHandler exchanges credentials for a token
func (a Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var body models.LoginRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err, "")
		return
	}
	email := normalizeEmail(body.Email)
	if email == "" || body.Password == "" {
		writeError(w, apperrors.Validation("Please provide email and password"), "")
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := a.DB.FindOne(ctx, bson.M{"email": email})
	if errors.Is(err, apperrors.ErrNotFound) {
		writeError(w, apperrors.Unauthorized("Invalid credentials"), "")
		return
	}
	if err != nil {
		writeError(w, err, "Server error during login")
		return
	}
	if !user.IsActive {
		writeError(w, apperrors.Unauthorized(api.MsgDeactivated), "")
		return
	}
	if !tokens.CheckPassword(user.Password, body.Password) {
		writeError(w, apperrors.Unauthorized("Invalid credentials"), "")
		return
	}

	now := time.Now().UTC()
	ip, userAgent := clientInfo(r)
	err = a.DB.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{
		"$set": bson.M{"lastLogin": now, "ipAddress": ip, "userAgent": userAgent},
		"$inc": bson.M{"loginCount": 1},
	})
	if err != nil {
		// a stale login record is not worth refusing the login over
		zap.S().Warnw("failed to record login", "userId", user.ID.Hex(), "error", err)
	} else {
		user.LastLogin = &now
		user.LoginCount++
	}

	token, err := a.Tokens.Issue(user.ID.Hex())
	if err != nil {
		writeError(w, err, "Server error during login")
		return
	}
	writeEnvelope(w, http.StatusOK, models.Envelope{
		Success: true,
		Message: "Login successful",
		Token:   token,
		Data:    models.AuthResponse{User: *user},
	})
}

// MeHandler returns the authenticated user
func (a Auth) MeHandler(w http.ResponseWriter, r *http.Request) {
	requester, ok := api.RequesterFromContext(r.Context())
	if !ok {
		writeError(w, errUnauthenticated, "")
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := a.DB.FindOne(ctx, bson.M{"_id": requester.ID})
	if errors.Is(err, apperrors.ErrNotFound) {
		writeError(w, apperrors.NotFound("User"), "")
		return
	}
	if err != nil {
		writeError(w, err, "Server error")
		return
	}
	writeSuccess(w, http.StatusOK, "", models.AuthResponse{User: *user})
}

// LogoutHandler revokes the bearer token used for the request
func (a Auth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.Revoker.Revoke(r, api.BearerToken(r)); err != nil {
		writeError(w, err, "Server error during logout")
		return
	}
	writeSuccess(w, http.StatusOK, "Logged out successfully", nil)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// clientInfo returns the caller's address, preferring the first X-Forwarded-For hop
func clientInfo(r *http.Request) (string, string) {
	ip := ""
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if ip == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip = host
	}
	return ip, r.UserAgent()
}
