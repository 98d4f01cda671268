package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/mainalyze/internal/domain"
	"github.com/fairyhunter13/mainalyze/internal/validation"
)

func TestWriteError_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{domain.ErrUnauthenticated, http.StatusUnauthorized, "Unauthorized"},
		{fmt.Errorf("%w: admin access required", domain.ErrForbidden), http.StatusForbidden, "Forbidden"},
		{fmt.Errorf("op=x: %w: larger than 10 MB", domain.ErrFileTooLarge), http.StatusRequestEntityTooLarge, "larger than 10 MB"},
		{domain.ErrUnsupportedMedia, http.StatusUnsupportedMediaType, "Unsupported media type"},
		{fmt.Errorf("op=prelims.grade: %w: answer index 9 out of range", domain.ErrInvalidArgument), http.StatusBadRequest, "answer index 9 out of range"},
		{fmt.Errorf("op=mains.get: %w", domain.ErrNotFound), http.StatusNotFound, "Not found"},
		{fmt.Errorf("op=prelims.grade: %w: session already graded", domain.ErrConflict), http.StatusConflict, "session already graded"},
		{domain.ErrRateLimited, http.StatusTooManyRequests, "Too many requests"},
		{fmt.Errorf("op=gemini: %w: deadline", domain.ErrUpstreamTimeout), http.StatusServiceUnavailable, "AI service timed out, please try again"},
		{domain.ErrUpstreamRateLimit, http.StatusServiceUnavailable, "AI service is busy, please try again shortly"},
		{fmt.Errorf("%w: bad json", domain.ErrSchemaInvalid), http.StatusBadGateway, "AI service returned an unusable response"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), c.err)
		assert.Equal(t, c.status, rec.Code, c.err.Error())
		var body errorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, c.msg, body.Error, c.err.Error())
	}
}

func TestWriteError_ValidationDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil),
		fmt.Errorf("op=x: %w", validation.Fail("topic", "TOPIC", "contains unsupported characters")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t,
		`{"error":"Validation failed","details":[{"field":"topic","code":"TOPIC","message":"contains unsupported characters"}]}`,
		rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		A int `json:"a"`
	}
	decode := func(body string) error {
		rec := httptest.NewRecorder()
		return decodeJSON(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), &dst)
	}

	require.NoError(t, decode(`{"a":1}`))
	assert.Equal(t, 1, dst.A)

	err := decode(``)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "request body is empty")

	assert.ErrorIs(t, decode(`{"a":"x"}`), domain.ErrInvalidArgument)
	assert.ErrorIs(t, decode(`{"a":1}{"a":2}`), domain.ErrInvalidArgument)
	assert.ErrorIs(t, decode(`{"a":"`+strings.Repeat("x", maxJSONBody)+`"}`), domain.ErrFileTooLarge)
}

func TestETagMatches(t *testing.T) {
	etag := `W/"0123456789abcdef"`
	assert.True(t, etagMatches(etag, etag))
	assert.True(t, etagMatches(`"0123456789abcdef"`, etag))
	assert.True(t, etagMatches(`W/"other", `+etag, etag))
	assert.True(t, etagMatches("*", etag))
	assert.False(t, etagMatches("", etag))
	assert.False(t, etagMatches(`W/"fedcba9876543210"`, etag))
}
