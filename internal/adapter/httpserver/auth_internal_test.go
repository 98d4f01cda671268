package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	obsctx "github.com/fairyhunter13/mainalyze/internal/observability"
)

const authSecret = "auth-secret"

var authNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func claimsFor(sub string, exp time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub, ExpiresAt: jwt.NewNumericDate(exp)},
		Email:            "aspirant@example.com",
	}
}

func TestAuthenticator_Verify(t *testing.T) {
	a := NewAuthenticator(authSecret)
	a.now = func() time.Time { return authNow }
	const sub = "0b8f4c2e-9d3a-4e1f-8a7b-6c5d4e3f2a1b"

	p, err := a.Verify(sign(t, jwt.SigningMethodHS256, []byte(authSecret), claimsFor(sub, authNow.Add(time.Hour))))
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: sub, Email: "aspirant@example.com"}, p)

	// within leeway
	_, err = a.Verify(sign(t, jwt.SigningMethodHS256, []byte(authSecret), claimsFor(sub, authNow.Add(-10*time.Second))))
	assert.NoError(t, err)

	cases := map[string]string{
		"expired":      sign(t, jwt.SigningMethodHS256, []byte(authSecret), claimsFor(sub, authNow.Add(-time.Hour))),
		"wrong secret": sign(t, jwt.SigningMethodHS256, []byte("other"), claimsFor(sub, authNow.Add(time.Hour))),
		"wrong alg":    sign(t, jwt.SigningMethodHS512, []byte(authSecret), claimsFor(sub, authNow.Add(time.Hour))),
		"unsigned":     sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, claimsFor(sub, authNow.Add(time.Hour))),
		"bad subject":  sign(t, jwt.SigningMethodHS256, []byte(authSecret), claimsFor("user-1", authNow.Add(time.Hour))),
		"garbage":      "a.b.c",
		"empty":        "",
	}
	for name, tok := range cases {
		_, err := a.Verify(tok)
		assert.Error(t, err, name)
	}
}

func TestAuthenticator_NoSecretRejectsEverything(t *testing.T) {
	a := NewAuthenticator("")
	_, err := a.Verify(sign(t, jwt.SigningMethodHS256, []byte(""), claimsFor("0b8f4c2e-9d3a-4e1f-8a7b-6c5d4e3f2a1b", time.Now().Add(time.Hour))))
	assert.Error(t, err)
}

func TestAuthenticator_MiddlewareAttachesPrincipal(t *testing.T) {
	a := NewAuthenticator(authSecret)
	const sub = "0b8f4c2e-9d3a-4e1f-8a7b-6c5d4e3f2a1b"
	var seen Principal
	var seenUser string
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = mustPrincipal(r)
		seenUser = obsctx.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+sign(t, jwt.SigningMethodHS256, []byte(authSecret), claimsFor(sub, time.Now().Add(time.Hour))))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, sub, seen.UserID)
	assert.Equal(t, sub, seenUser)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
