package gate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"food-diary/pkg/ratelimit"
	"food-diary/pkg/security/origin"
)

const validToken = "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMjM0In0.sig"

type recordingRecorder struct {
	accepted int
	rejected map[Reason]int
}

func (r *recordingRecorder) RecordAccepted() { r.accepted++ }
func (r *recordingRecorder) RecordRejected(reason Reason) {
	if r.rejected == nil {
		r.rejected = map[Reason]int{}
	}
	r.rejected[reason]++
}

type errLimiter struct{ err error }

func (e errLimiter) Check(context.Context, string, int, time.Duration) (*ratelimit.Decision, error) {
	return nil, e.err
}

func newTestGate(t *testing.T, limit int, opts ...Option) *Gate {
	t.Helper()
	limiter := ratelimit.NewFixedWindowLimiter(
		ratelimit.NewInMemoryStore(ratelimit.DefaultInMemoryStoreConfig()),
		ratelimit.WithLimiterType("gate"),
	)
	g, err := New(Config{
		AllowList:    origin.NewAllowList([]string{"https://myapp.com", "*.myapp.com"}),
		Limit:        limit,
		Window:       time.Minute,
		RequireToken: true,
	}, limiter, opts...)
	require.NoError(t, err)
	return g
}

func newRequest(originHdr, auth string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/entries", nil)
	r.RemoteAddr = "203.0.113.7:51234"
	if originHdr != "" {
		r.Header.Set("Origin", originHdr)
	}
	if auth != "" {
		r.Header.Set("Authorization", auth)
	}
	return r
}

func TestGate_Evaluate(t *testing.T) {
	tests := []struct {
		name       string
		origin     string
		auth       string
		wantOK     bool
		wantReason Reason
		wantStage  Stage
	}{
		{"accepted", "https://myapp.com", "Bearer " + validToken, true, "", StageAccepted},
		{"subdomain accepted", "https://m.myapp.com", "Bearer " + validToken, true, "", StageAccepted},
		{"foreign origin", "https://evil.com", "Bearer " + validToken, false, ReasonOriginInvalid, StageOrigin},
		{"suffix attack", "https://myapp.com.attacker.net", "Bearer " + validToken, false, ReasonOriginInvalid, StageOrigin},
		{"no origin no referer", "", "Bearer " + validToken, false, ReasonOriginInvalid, StageOrigin},
		{"malformed token", "https://myapp.com", "Bearer abc.def", false, ReasonTokenMalformed, StageTokenFormat},
		{"wrong scheme", "https://myapp.com", "Basic dXNlcg==", false, ReasonTokenMalformed, StageTokenFormat},
		{"missing token", "https://myapp.com", "", false, ReasonTokenMalformed, StageTokenFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGate(t, 10)
			res := g.Evaluate(context.Background(), newRequest(tt.origin, tt.auth))
			assert.Equal(t, tt.wantOK, res.Accepted)
			assert.Equal(t, tt.wantReason, res.Reason)
			assert.Equal(t, tt.wantStage, res.Stage)
		})
	}
}

func TestGate_Evaluate_OptionalToken(t *testing.T) {
	limiter := ratelimit.NewFixedWindowLimiter(ratelimit.NewInMemoryStore(ratelimit.DefaultInMemoryStoreConfig()))
	g, err := New(Config{AllowList: origin.NewAllowList([]string{"*"}), Limit: 5, Window: time.Minute}, limiter)
	require.NoError(t, err)

	assert.True(t, g.Evaluate(context.Background(), newRequest("https://x.test", "")).Accepted)
	assert.False(t, g.Evaluate(context.Background(), newRequest("https://x.test", "Bearer nope")).Accepted)
}

func TestGate_Evaluate_RateLimitShortCircuits(t *testing.T) {
	rec := &recordingRecorder{}
	g := newTestGate(t, 2, WithRecorder(rec))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res := g.Evaluate(ctx, newRequest("https://myapp.com", "Bearer "+validToken))
		require.True(t, res.Accepted)
		assert.Equal(t, 1-i, res.Decision.Remaining)
	}

	// Malformed token is never inspected once the limit is hit.
	res := g.Evaluate(ctx, newRequest("https://myapp.com", "Bearer bad"))
	assert.False(t, res.Accepted)
	assert.Equal(t, ReasonRateLimited, res.Reason)
	assert.Equal(t, StageRateLimit, res.Stage)
	require.NotNil(t, res.Decision)
	assert.False(t, res.Decision.Allowed)

	// Other clients keep their own budget.
	other := newRequest("https://myapp.com", "Bearer "+validToken)
	other.RemoteAddr = "198.51.100.1:4000"
	assert.True(t, g.Evaluate(ctx, other).Accepted)

	assert.Equal(t, 3, rec.accepted)
	assert.Equal(t, 1, rec.rejected[ReasonRateLimited])
}

func TestGate_Evaluate_OriginRejectionSkipsLimiter(t *testing.T) {
	g := newTestGate(t, 1)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		g.Evaluate(ctx, newRequest("https://evil.com", ""))
	}
	res := g.Evaluate(ctx, newRequest("https://myapp.com", "Bearer "+validToken))
	assert.True(t, res.Accepted, "origin rejections must not spend the rate limit")
}

func TestGate_Evaluate_Bypass(t *testing.T) {
	g := newTestGate(t, 5)
	ctx := WithBypass(context.Background())

	res := g.Evaluate(ctx, newRequest("", "Bearer "+validToken))
	assert.True(t, res.Accepted)
}

func TestGate_Evaluate_StoreErrorFailsClosed(t *testing.T) {
	g, err := New(Config{
		AllowList: origin.NewAllowList([]string{"*"}),
		Limit:     5,
		Window:    time.Minute,
	}, errLimiter{err: errors.New("redis down")})
	require.NoError(t, err)

	res := g.Evaluate(context.Background(), newRequest("https://myapp.com", ""))
	assert.False(t, res.Accepted)
	assert.Equal(t, ReasonRateLimited, res.Reason)
	assert.Nil(t, res.Decision)
}

func TestGate_Evaluate_BurstGuard(t *testing.T) {
	burst := ratelimit.NewBurstGuard(0.001, 1)
	g := newTestGate(t, 100, WithBurstGuard(burst))
	ctx := context.Background()

	assert.True(t, g.Evaluate(ctx, newRequest("https://myapp.com", "Bearer "+validToken)).Accepted)
	res := g.Evaluate(ctx, newRequest("https://myapp.com", "Bearer "+validToken))
	assert.False(t, res.Accepted)
	assert.Equal(t, ReasonRateLimited, res.Reason)
}

func TestGate_Evaluate_CustomKeyFunc(t *testing.T) {
	g := newTestGate(t, 1, WithKeyFunc(func(r *http.Request) (string, error) {
		return r.Header.Get("X-Client"), nil
	}))
	ctx := context.Background()

	a := newRequest("https://myapp.com", "Bearer "+validToken)
	a.Header.Set("X-Client", "a")
	b := newRequest("https://myapp.com", "Bearer "+validToken)
	b.Header.Set("X-Client", "b")

	assert.True(t, g.Evaluate(ctx, a).Accepted)
	assert.True(t, g.Evaluate(ctx, b).Accepted)
	assert.False(t, g.Evaluate(ctx, a).Accepted)

	anon := newRequest("https://myapp.com", "Bearer "+validToken)
	assert.Equal(t, ReasonRateLimited, g.Evaluate(ctx, anon).Reason, "empty key fails closed")
}

func TestGate_Evaluate_Span(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	g := newTestGate(t, 5, WithTracerProvider(tp))

	g.Evaluate(context.Background(), newRequest("https://evil.com", ""))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "gate.evaluate", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Contains(t, span.Attributes(), attribute.String("gate.reason", string(ReasonOriginInvalid)))
	assert.Contains(t, span.Attributes(), attribute.Bool("gate.accepted", false))
}

func TestNew_Validation(t *testing.T) {
	limiter := ratelimit.NewFixedWindowLimiter(ratelimit.NewInMemoryStore(ratelimit.DefaultInMemoryStoreConfig()))

	_, err := New(Config{Limit: 0, Window: time.Minute}, limiter)
	assert.Error(t, err)
	_, err = New(Config{Limit: 1, Window: 0}, limiter)
	assert.Error(t, err)
	_, err = New(Config{Limit: 1, Window: time.Minute}, nil)
	assert.Error(t, err)
}

func TestGate_Middleware(t *testing.T) {
	tests := []struct {
		name       string
		origin     string
		auth       string
		wantStatus int
		wantError  string
	}{
		{"accepted", "https://myapp.com", "Bearer " + validToken, http.StatusNoContent, ""},
		{"origin rejected", "https://evil.com", "Bearer " + validToken, http.StatusForbidden, "origin_invalid"},
		{"token rejected", "https://myapp.com", "Bearer x", http.StatusUnauthorized, "token_malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGate(t, 10)
			called := false
			h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusNoContent)
			}))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, newRequest(tt.origin, tt.auth))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError == "", called)
			if tt.wantError != "" {
				var body rejectionBody
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, tt.wantError, body.Error)
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestGate_Middleware_RateLimited(t *testing.T) {
	g := newTestGate(t, 1)
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newRequest("https://myapp.com", "Bearer "+validToken))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, newRequest("https://myapp.com", "Bearer "+validToken))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body rejectionBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "rate_limited", body.Error)
	assert.Positive(t, body.RetryAfter)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, Status(ReasonOriginInvalid))
	assert.Equal(t, http.StatusTooManyRequests, Status(ReasonRateLimited))
	assert.Equal(t, http.StatusUnauthorized, Status(ReasonTokenMalformed))
}
