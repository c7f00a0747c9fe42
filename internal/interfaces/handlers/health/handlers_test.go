package health

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	healthsvc "auction-backend/internal/application/health"
	"auction-backend/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupHealthTest(t *testing.T) (*Handlers, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	return &Handlers{Deps: healthsvc.Deps{DB: db, Rdb: rdb}}, mr
}

func TestJSON_ReportsOK(t *testing.T) {
	h, _ := setupHealthTest(t)
	app := fiber.New()
	app.Get("/health/json", h.JSON)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "auction-backend", body["service"])
	assert.Equal(t, "ok", body["status"])
	deps, _ := body["dependencies"].(map[string]interface{})
	assert.Contains(t, deps, "nats")
}

func TestJSON_UnavailableWithoutDeps(t *testing.T) {
	h := &Handlers{}
	app := fiber.New()
	app.Get("/health/json", h.JSON)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)
}

func TestReset_ClearsCounters(t *testing.T) {
	h, mr := setupHealthTest(t)
	require.NoError(t, mr.Set(middleware.KeyReqTotal, "42"))
	require.NoError(t, mr.Set(middleware.KeyReqRejected, "3"))

	app := fiber.New()
	app.Get("/health/reset", h.Reset)
	resp, err := app.Test(httptest.NewRequest("GET", "/health/reset", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	assert.False(t, mr.Exists(middleware.KeyReqTotal))
	assert.False(t, mr.Exists(middleware.KeyReqRejected))
	assert.True(t, mr.Exists(middleware.KeyStartTime))
}
