package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/missingalert/missing-alert-api/apperrors"
	tokens "github.com/missingalert/missing-alert-api/auth"
	"github.com/missingalert/missing-alert-api/config"
	"github.com/missingalert/missing-alert-api/databases"
	"github.com/missingalert/missing-alert-api/models"
)

// identityTTL bounds how long a verified token is served from cache before the user
// record is read again.
const identityTTL = 5 * time.Minute

// Auth failure messages
const (
	MsgNoToken       = "No token, authorization denied"
	MsgInvalidToken  = "Invalid token"
	MsgTokenExpired  = "Token expired"
	MsgUserNotFound  = "Token is not valid - user not found"
	MsgDeactivated   = "Account has been deactivated"
	MsgVerifyFailure = "Token verification failed"
)

// authFailure carries the reason a token was rejected from the bearer strategy back
// to the middleware.
type authFailure struct {
	message string
}

// MiddlewareDB verifies bearer tokens against the users collection
type MiddlewareDB struct {
	DB     databases.UserDatabase
	Tokens *tokens.TokenIssuer

	authenticator auth.Authenticator
	strategy      auth.Strategy
	revoked       store.Cache
}

// SetupGoGuardian sets up the go-guardian authenticator with a cached bearer strategy.
// Revoked tokens are remembered until they would have expired anyway.
func (m *MiddlewareDB) SetupGoGuardian(ctx context.Context, tokenTTL time.Duration) {
	m.authenticator = auth.New()
	m.strategy = bearer.New(m.verifyToken, store.NewFIFO(ctx, identityTTL))
	m.revoked = store.NewFIFO(ctx, tokenTTL)
	m.authenticator.EnableStrategy(bearer.CachedStrategyKey, m.strategy)
}

// Middleware rejects requests without a valid bearer token and stores the caller on
// the request context.
func (m *MiddlewareDB) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			config.ErrorStatus(MsgNoToken, http.StatusUnauthorized, w, errors.New("missing bearer token"))
			return
		}
		if _, revoked, _ := m.revoked.Load(token, r); revoked {
			config.ErrorStatus(MsgInvalidToken, http.StatusUnauthorized, w, errors.New("token revoked"))
			return
		}

		failure := &authFailure{}
		r = r.WithContext(context.WithValue(r.Context(), authFailureKey, failure))
		info, err := m.authenticator.Authenticate(r)
		if err != nil {
			message := failure.message
			if message == "" {
				message = MsgVerifyFailure
			}
			config.ErrorStatus(message, http.StatusUnauthorized, w, err)
			return
		}

		requester, err := requesterFromInfo(info)
		if err != nil {
			config.ErrorStatus(MsgInvalidToken, http.StatusUnauthorized, w, err)
			return
		}
		zap.S().Debugw("user authenticated", "userId", info.ID())
		next.ServeHTTP(w, r.WithContext(WithRequester(r.Context(), requester)))
	})
}

// RequireRole wraps an authenticated handler so only the given roles reach it
func RequireRole(next http.Handler, roles ...models.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requester, ok := RequesterFromContext(r.Context())
		if ok {
			for _, role := range roles {
				if requester.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
		}
		config.ErrorStatus("Access denied. Insufficient permissions.", http.StatusForbidden, w, errors.New("role not allowed"))
	})
}

// Revoke drops the cached identity for token and refuses it from now on
func (m *MiddlewareDB) Revoke(r *http.Request, token string) error {
	if token == "" {
		return nil
	}
	if err := m.revoked.Store(token, true, r); err != nil {
		return err
	}
	return auth.Revoke(m.strategy, token, r)
}

// verifyToken is the bearer strategy's authenticate func. It runs only for tokens not
// already in the identity cache.
func (m *MiddlewareDB) verifyToken(ctx context.Context, r *http.Request, token string) (auth.Info, error) {
	fail := func(message string, err error) (auth.Info, error) {
		if f, ok := ctx.Value(authFailureKey).(*authFailure); ok {
			f.message = message
		}
		return nil, err
	}

	claims, err := m.Tokens.Parse(token)
	if errors.Is(err, tokens.ErrTokenExpired) {
		return fail(MsgTokenExpired, err)
	}
	if err != nil {
		return fail(MsgInvalidToken, err)
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return fail(MsgInvalidToken, err)
	}

	qctx, cancel := WithQueryTimeout(ctx)
	defer cancel()
	user, err := m.DB.FindOne(qctx, bson.M{"_id": id})
	if errors.Is(err, apperrors.ErrNotFound) {
		return fail(MsgUserNotFound, err)
	}
	if err != nil {
		zap.S().Errorw("failed to load user for token", "userId", claims.UserID, "error", err)
		return fail(MsgVerifyFailure, err)
	}
	if !user.IsActive {
		return fail(MsgDeactivated, errors.New("user deactivated"))
	}

	return auth.NewDefaultUser(user.Name, user.ID.Hex(), []string{string(user.Role)}, nil), nil
}

func requesterFromInfo(info auth.Info) (models.Requester, error) {
	id, err := primitive.ObjectIDFromHex(info.ID())
	if err != nil {
		return models.Requester{}, err
	}
	role := models.RoleUser
	if groups := info.Groups(); len(groups) > 0 {
		role = models.ParseRole(groups[0])
	}
	return models.Requester{ID: id, Name: info.UserName(), Role: role}, nil
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
