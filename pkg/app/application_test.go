package app

import (
	"bookshelf/pkg/client"
	"bookshelf/pkg/config"
	"bookshelf/pkg/logger"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterHandler struct {
	calls atomic.Int32
}

func (h *counterHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/counter", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		n := h.calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"call":` + strconv.Itoa(int(n)) + `}`))
	})
}

func newTestApplication(t *testing.T, handlers ...*counterHandler) *Application {
	t.Helper()
	cfg := &config.Config{
		Port:              config.DefaultPort,
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    time.Second,
		IdempotencyTTL:    time.Minute,
		MaxRequestSize:    1024,
		ShutdownTimeout:   time.Second,
		Log: logger.New(logger.Config{
			Level:     "info",
			Format:    logger.JSON,
			Output:    io.Discard,
			AddSource: false,
			Service:   "test",
		}),
		Client: client.NewClient(),
	}

	a := NewApplication(cfg)
	for _, h := range handlers {
		a.SetApp(h)
	}
	t.Cleanup(a.stopWorkers)
	return a
}

func TestApplication_HealthBypassesAppStack(t *testing.T) {
	a := newTestApplication(t, &counterHandler{})

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestApplication_RejectsWrongContentType(t *testing.T) {
	h := &counterHandler{}
	a := newTestApplication(t, h)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/counter", strings.NewReader("hi"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Zero(t, h.calls.Load())
}

func TestApplication_ReplaysIdempotentPost(t *testing.T) {
	h := &counterHandler{}
	a := newTestApplication(t, h)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/counter", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "abc")
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, req)
		return rec
	}

	first := send()
	second := send()

	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.EqualValues(t, 1, h.calls.Load())
}

func TestApplication_UnknownRoute(t *testing.T) {
	a := newTestApplication(t, &counterHandler{})

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplication_ClosersRunInReverse(t *testing.T) {
	a := newTestApplication(t, &counterHandler{})

	var order []string
	a.OnShutdown(func() { order = append(order, "producer") })
	a.OnShutdown(func() { order = append(order, "mongo") })

	a.gracefulShutdown()

	assert.Equal(t, []string{"mongo", "producer"}, order)
}
