package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestApp(t *testing.T, opts Options) (*fiber.App, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	m := New(logger, opts)

	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Use(m.NewLoggingMiddleware)
	app.Use(m.NewRateLimiter)
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString(m.GetRequestID(c))
	})
	return app, hook
}

func TestRequestIDIsGeneratedAndEchoed(t *testing.T) {
	app, hook := newTestApp(t, Options{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	id := resp.Header.Get(RequestIDKey)
	assert.Len(t, id, 26)
	assert.Equal(t, id, string(body))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDKey, "client-supplied")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "client-supplied", resp.Header.Get(RequestIDKey))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "client-supplied", entry.Data["request_id"])
	assert.Equal(t, http.StatusOK, entry.Data["status"])
}

func TestRateLimiterRejectsBurstOverflow(t *testing.T) {
	app, hook := newTestApp(t, Options{RequestsPerSecond: 0.001, Burst: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	clock := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	r := newRateLimiter(rate.Limit(10), 5)
	r.now = func() time.Time { return clock }
	r.lastSweep = clock
	assert.Equal(t, minIdleTTL, r.idleTTL)

	first := r.GetLimiterFrom("10.0.0.1")
	r.GetLimiterFrom("10.0.0.2")
	assert.Same(t, first, r.GetLimiterFrom("10.0.0.1"))

	clock = clock.Add(2 * time.Minute)
	r.GetLimiterFrom("10.0.0.2")

	clock = clock.Add(2 * time.Minute)
	r.GetLimiterFrom("10.0.0.3")
	assert.Len(t, r.bucket, 2)
	assert.NotContains(t, r.bucket, "10.0.0.1")
	assert.Contains(t, r.bucket, "10.0.0.2")

	assert.NotSame(t, first, r.GetLimiterFrom("10.0.0.1"))
}

func TestRateLimiterIdleTTLCoversRefill(t *testing.T) {
	r := newRateLimiter(rate.Limit(0.01), 10)
	assert.Equal(t, 1000*time.Second, r.idleTTL)
}

func TestRateLimiterDisabledByDefault(t *testing.T) {
	app, _ := newTestApp(t, Options{})
	for i := 0; i < 20; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestDescribeBody(t *testing.T) {
	assert.Equal(t, `{"label":"x"}`, describeBody("application/json", []byte(`{"label":"x"}`)))
	assert.Equal(t, "[invalid JSON body]", describeBody("application/json; charset=utf-8", []byte(`{`)))
	assert.Equal(t, "[multipart/form-data body, 4 bytes]", describeBody("multipart/form-data; boundary=x", []byte("abcd")))
	assert.Equal(t, "[untyped body, 1 bytes]", describeBody("", []byte("a")))
}

func TestValidRequestID(t *testing.T) {
	assert.True(t, validRequestID("01HZX3K5T2-abc_def.1"))
	assert.False(t, validRequestID(""))
	assert.False(t, validRequestID("has space"))
	assert.False(t, validRequestID("line\nbreak"))
	assert.False(t, validRequestID(string(make([]byte, 65))))
}
