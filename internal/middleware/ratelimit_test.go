package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/roamly/experience-booking/internal/config"
)

func rateTestContext(t *testing.T) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", nil)
	req.Header.Set("X-Real-IP", "203.0.113.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/bookings")
	return c
}

func TestBucketKeyStrategies(t *testing.T) {
	cfg := config.RateLimitConfig{Prefix: "booking:rl"}

	c := rateTestContext(t)
	c.Set("user_id", "7")

	cfg.KeyStrategy = "ip"
	assert.Equal(t, "booking:rl:ip:203.0.113.9", bucketKey(cfg, c))

	cfg.KeyStrategy = "explorer"
	assert.Equal(t, "booking:rl:explorer:7", bucketKey(cfg, c))

	cfg.KeyStrategy = "ip_explorer_route"
	assert.Equal(t, "booking:rl:ip:203.0.113.9:explorer:7:route:POST /v1/bookings", bucketKey(cfg, c))
}

func TestExplorerKeyClaimTypes(t *testing.T) {
	c := rateTestContext(t)
	assert.Equal(t, "anon", explorerKey(c), "unauthenticated requests share the anon bucket")

	c.Set("user_id", "abc")
	assert.Equal(t, "abc", explorerKey(c))

	// jwt.MapClaims decodes numeric subjects as float64.
	c.Set("user_id", float64(42))
	assert.Equal(t, "42", explorerKey(c))

	c.Set("user_id", uint64(99))
	assert.Equal(t, "99", explorerKey(c))
}

func TestAsInt64(t *testing.T) {
	assert.Equal(t, int64(5), asInt64(int64(5)))
	assert.Equal(t, int64(5), asInt64("5"))
	assert.Equal(t, int64(5), asInt64(float64(5.0)))
	assert.Equal(t, int64(0), asInt64("not a number"))
	assert.Equal(t, int64(0), asInt64(nil))
}
