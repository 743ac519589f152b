package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/realfinder/verifier/src/checks"
	"github.com/realfinder/verifier/src/verification"
	"github.com/realfinder/verifier/src/verification/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier struct {
	got  types.Request
	err  error
	hits int
}

func (s *stubVerifier) Verify(_ context.Context, req types.Request) (*types.Decision, error) {
	s.hits++
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &types.Decision{
		ID:            "d-1",
		SubjectType:   req.SubjectType,
		SubjectID:     req.ID,
		Decision:      types.Approve,
		CombinedScore: 0.92,
		PerCheck: map[string]types.CheckResult{
			"text": {Status: types.StatusPass, ConfidenceScore: 0.95, Findings: []types.Finding{}},
		},
		DecidedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	r := NewRouter(&stubVerifier{}, Options{})
	rec := do(t, r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestVerifyRoutesBuildRequests(t *testing.T) {
	tests := []struct {
		path    string
		body    string
		subject types.SubjectType
		check   func(t *testing.T, req types.Request)
	}{
		{
			path:    "/v1/verify/listing",
			body:    `{"id":"L-1","title":"2BHK","description":"Sunny flat","price":7500000,"area_sqft":1100}`,
			subject: types.SubjectListing,
			check: func(t *testing.T, req types.Request) {
				require.NotNil(t, req.Listing)
				assert.Equal(t, "2BHK", req.Listing.Title)
				assert.Equal(t, "7500000", req.Listing.Price.String())
			},
		},
		{
			path:    "/v1/verify/broker",
			body:    `{"id":"B-1","full_name":"Asha Rao","license_number":"RERA-123"}`,
			subject: types.SubjectBroker,
			check: func(t *testing.T, req types.Request) {
				require.NotNil(t, req.Broker)
				assert.Equal(t, "RERA-123", req.Broker.LicenseNumber)
			},
		},
		{
			path:    "/v1/verify/property",
			body:    `{"id":"P-1","owner_name":"Asha Rao","address":"12 MG Road"}`,
			subject: types.SubjectProperty,
			check: func(t *testing.T, req types.Request) {
				require.NotNil(t, req.Property)
				assert.Equal(t, "12 MG Road", req.Property.Address)
			},
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.subject), func(t *testing.T) {
			v := &stubVerifier{}
			rec := do(t, NewRouter(v, Options{}), http.MethodPost, tt.path, tt.body, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			assert.Equal(t, tt.subject, v.got.SubjectType)
			tt.check(t, v.got)

			out := decode(t, rec)
			assert.Equal(t, "APPROVE", out["decision"])
			assert.InDelta(t, 0.92, out["combined_score"], 1e-9)
			text, ok := out["text"].(map[string]any)
			require.True(t, ok, "per-check result is flattened into the body")
			assert.Equal(t, "PASS", text["status"])
		})
	}
}

func TestMalformedJSON(t *testing.T) {
	v := &stubVerifier{}
	rec := do(t, NewRouter(v, Options{}), http.MethodPost, "/v1/verify/listing", `{"id":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "validation", out["kind"])
	assert.Equal(t, false, out["retryable"])
	assert.Zero(t, v.hits)
}

func TestErrorEnvelope(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		kind      string
		retryable bool
	}{
		{
			name:   "validation",
			err:    &verification.ValidationError{Problems: []verification.Problem{{Field: "listing.title", Message: "is required"}}},
			status: http.StatusBadRequest, kind: "validation",
		},
		{
			name:   "internal fault",
			err:    &verification.InternalFault{Op: "select checks", Err: errors.New("empty")},
			status: http.StatusInternalServerError, kind: "internal", retryable: true,
		},
		{
			name:   "unexpected",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError, kind: "internal", retryable: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(&stubVerifier{err: tt.err}, Options{})
			rec := do(t, r, http.MethodPost, "/v1/verify/broker", `{"id":"B-1"}`, nil)
			assert.Equal(t, tt.status, rec.Code)
			out := decode(t, rec)
			assert.Equal(t, tt.kind, out["kind"])
			assert.Equal(t, tt.retryable, out["retryable"])
			assert.NotContains(t, rec.Body.String(), "empty", "internal detail is not leaked")
		})
	}
}

func TestValidationDetails(t *testing.T) {
	err := &verification.ValidationError{Problems: []verification.Problem{{Field: "listing.title", Message: "is required"}}}
	rec := do(t, NewRouter(&stubVerifier{err: err}, Options{}), http.MethodPost, "/v1/verify/listing", `{"id":"L-1"}`, nil)
	out := decode(t, rec)
	details, ok := out["details"].([]any)
	require.True(t, ok)
	require.Len(t, details, 1)
	assert.Equal(t, "listing.title", details[0].(map[string]any)["field"])
}

func TestJWT(t *testing.T) {
	secret := "s3cret"
	r := NewRouter(&stubVerifier{}, Options{JWTSecret: secret})
	body := `{"id":"B-1","full_name":"Asha Rao","license_number":"RERA-123"}`

	rec := do(t, r, http.MethodPost, "/v1/verify/broker", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "portal"}).SignedString([]byte(secret))
	require.NoError(t, err)
	rec = do(t, r, http.MethodPost, "/v1/verify/broker", body, http.Header{"Authorization": {"Bearer " + signed}})
	assert.Equal(t, http.StatusOK, rec.Code)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "portal"}).SignedString([]byte("other"))
	require.NoError(t, err)
	rec = do(t, r, http.MethodPost, "/v1/verify/broker", body, http.Header{"Authorization": {"Bearer " + forged}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health stays open")
}

func TestRateLimitMiddleware(t *testing.T) {
	defer goleak.VerifyNone(t)

	limiter := NewRateLimiter(2, time.Minute)
	defer limiter.Stop()

	r := NewRouter(&stubVerifier{}, Options{Limiter: limiter})
	body := `{"id":"P-1","owner_name":"Asha Rao","address":"12 MG Road"}`
	for i := 0; i < 2; i++ {
		rec := do(t, r, http.MethodPost, "/v1/verify/property", body, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, r, http.MethodPost, "/v1/verify/property", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	out := decode(t, rec)
	assert.Equal(t, "rate_limited", out["kind"])
	assert.Equal(t, true, out["retryable"])
}

func TestRateLimiterWindowSlides(t *testing.T) {
	defer goleak.VerifyNone(t)

	limiter := NewRateLimiter(1, time.Minute)
	defer limiter.Stop()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	ok, _ := limiter.Allow("a")
	assert.True(t, ok)
	ok, wait := limiter.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, wait)
	ok, _ = limiter.Allow("b")
	assert.True(t, ok, "clients are limited independently")

	now = now.Add(time.Minute)
	ok, _ = limiter.Allow("a")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	limiter.cleanup()
	assert.Empty(t, limiter.requests)
}

func TestChecksListing(t *testing.T) {
	r := NewRouter(&stubVerifier{}, Options{Checks: []checks.Descriptor{{Name: "text", Weight: 0.3}}})
	rec := do(t, r, http.MethodGet, "/v1/checks", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"checks":[{"name":"text","weight":0.3}]}`, rec.Body.String())
}

func TestRecovery(t *testing.T) {
	r := NewRouter(panicVerifier{}, Options{})
	rec := do(t, r, http.MethodPost, "/v1/verify/broker", `{"id":"B-1"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", decode(t, rec)["kind"])
}

type panicVerifier struct{}

func (panicVerifier) Verify(context.Context, types.Request) (*types.Decision, error) {
	panic("unexpected")
}

func TestDecodeRequest(t *testing.T) {
	req, err := DecodeRequest(types.SubjectBroker, []byte(`{"id":"B-9","full_name":"Asha Rao","license_number":"RERA-1"}`))
	require.NoError(t, err)
	assert.Equal(t, "B-9", req.ID)
	assert.Equal(t, types.SubjectBroker, req.SubjectType)
	require.NotNil(t, req.Broker)
	assert.Equal(t, "Asha Rao", req.Broker.FullName)
	assert.Nil(t, req.Listing)

	_, err = DecodeRequest("boat", []byte(`{}`))
	assert.Error(t, err)

	_, err = DecodeRequest(types.SubjectListing, []byte(`not json`))
	assert.Error(t, err)
}
