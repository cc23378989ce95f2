package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte("hello"))
})

// =========================================================================
// LOGGER
// =========================================================================

func TestLogger_RecordsStatusAndBytes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	rr := httptest.NewRecorder()
	Logger(logger)(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/posts", nil))

	out := buf.String()
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, out, "request completed")
	assert.Contains(t, out, "method=POST")
	assert.Contains(t, out, "path=/posts")
	assert.Contains(t, out, "status=201")
	assert.Contains(t, out, "bytes=5")
}

func TestLogger_ServerErrorsLogAtWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	failing := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	Logger(logger)(failing).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/posts", nil))

	assert.Contains(t, buf.String(), "level=WARN")
}

// =========================================================================
// RATE LIMIT
// =========================================================================

func request(remote string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{}"))
	r.RemoteAddr = remote
	return r
}

func TestRateLimit_PerIPBudget(t *testing.T) {
	l := NewIPRateLimiter(1, 2)
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return frozen }
	h := RateLimit(l)(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, request("10.0.0.1:5555"))
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)

	// A different IP has its own bucket.
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, request("10.0.0.2:5555"))
	assert.Equal(t, http.StatusCreated, rr.Code)

	// Same IP, different port, same bucket.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, request("10.0.0.1:6666"))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.JSONEq(t, `{"error":"too many requests"}`, rr.Body.String())
}

func TestRateLimit_RefillsOverTime(t *testing.T) {
	l := NewIPRateLimiter(1, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("1.2.3.4"))
	assert.False(t, l.Allow("1.2.3.4"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("1.2.3.4"))
}

func TestSweep_DropsIdleVisitors(t *testing.T) {
	l := NewIPRateLimiter(1, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(20 * time.Minute)
	l.Allow("fresh")

	l.Sweep(10 * time.Minute)

	assert.NotContains(t, l.visitors, "old")
	assert.Contains(t, l.visitors, "fresh")
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "10.0.0.1", clientIP(request("10.0.0.1:1234")))
	assert.Equal(t, "203.0.113.9", clientIP(request("203.0.113.9")))
	assert.Equal(t, "::1", clientIP(request("[::1]:1234")))
}
