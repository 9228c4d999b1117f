package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })
	return r
}

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	r := newEngine(RequestID(zap.NewNop()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Header().Get(requestIDHeader) == "" || w.Body.String() != w.Header().Get(requestIDHeader) {
		t.Errorf("expected generated request id, got header %q body %q", w.Header().Get(requestIDHeader), w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(requestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(requestIDHeader) != "abc" {
		t.Errorf("expected caller request id to be kept, got %q", w.Header().Get(requestIDHeader))
	}

	for _, bad := range []string{"has space", "line\nbreak", strings.Repeat("x", 65)} {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(requestIDHeader, bad)
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if got := w.Header().Get(requestIDHeader); got == bad || got == "" {
			t.Errorf("expected %q to be replaced, got %q", bad, got)
		}
	}
}

func TestLoggerFrom(t *testing.T) {
	base := zap.NewNop()
	r := gin.New()
	r.Use(RequestID(base))
	var scoped *zap.Logger
	r.GET("/x", func(c *gin.Context) { scoped = LoggerFrom(c, nil) })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	if scoped == nil || scoped == base {
		t.Error("expected a request-scoped child logger")
	}

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if LoggerFrom(c, base) != base {
		t.Error("expected fallback without RequestID")
	}
}

func TestBodyLimit(t *testing.T) {
	var rejected error
	reject := func(c *gin.Context, err error) {
		rejected = err
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	}
	r := newEngine(BodyLimit(4, reject))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", bytes.NewBufferString("too large")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
	if !errors.Is(rejected, domain.ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", rejected)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", bytes.NewBufferString("ok")))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestBodyLimit_UndeclaredLength(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(4, func(c *gin.Context, err error) { t.Error("unexpected early rejection") }))
	var readErr error
	r.POST("/x", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		readErr = BodyTooLarge(err)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/x", bytes.NewBufferString("too large"))
	req.ContentLength = -1
	r.ServeHTTP(httptest.NewRecorder(), req)
	if !errors.Is(readErr, domain.ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge on read, got %v", readErr)
	}

	other := errors.New("boom")
	if BodyTooLarge(other) != other {
		t.Error("expected other errors to pass through")
	}
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newEngine(RateLimiter(ctx, 2))

	codes := make([]int, 3)
	for i := range codes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
		codes[i] = w.Code
		if i == 2 && w.Header().Get("Retry-After") == "" {
			t.Error("expected Retry-After header")
		}
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected codes %v", codes)
	}
}

func TestCORS_Preflight(t *testing.T) {
	r := newEngine(CORS(), Logger(zap.NewNop()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header")
	}
}
