package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	obsctx "github.com/fairyhunter13/mainalyze/internal/observability"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Email  string
}

// Claims are the bearer token claims issued by the identity provider.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

type principalKey struct{}

// PrincipalFrom returns the caller attached by Authenticator.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

// NewAuthenticator builds an Authenticator for the shared secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

var (
	errNoToken    = errors.New("missing bearer token")
	errBadSubject = errors.New("token subject is not a user id")
)

// Verify parses and checks a raw token.
func (a *Authenticator) Verify(raw string) (Principal, error) {
	if raw == "" {
		return Principal{}, errNoToken
	}
	if len(a.secret) == 0 {
		return Principal{}, errors.New("authentication is not configured")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return Principal{}, err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, errBadSubject
	}
	return Principal{UserID: id.String(), Email: claims.Email}, nil
}

// Middleware rejects requests without a valid token with 401 and otherwise
// attaches the Principal and a user-scoped logger to the context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.Verify(bearerToken(r))
		if err != nil {
			LoggerFrom(r).Debug("authentication failed", "error", err)
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, p)
		ctx = obsctx.ContextWithUserID(ctx, p.UserID)
		noteUser(ctx, p.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// mustPrincipal is used by handlers mounted behind Authenticator.Middleware.
func mustPrincipal(r *http.Request) Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}
