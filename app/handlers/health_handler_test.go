package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type healthBody struct {
	Success bool `json:"success"`
	Data    struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Details struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		} `json:"details"`
	} `json:"error"`
}

func callHealth(t *testing.T, h *HealthHandler) (int, healthBody) {
	t.Helper()

	app := fiber.New()
	app.Get("/health", h.Health)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body healthBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHealth(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	t.Run("all dependencies up", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectPing()

		status, body := callHealth(t, NewHealthHandler(db, rdb, "1.0.0"))
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, body.Success)
		assert.Equal(t, "ok", body.Data.Status)
		assert.Equal(t, map[string]string{"database": "up", "redis": "up"}, body.Data.Checks)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database down", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		status, body := callHealth(t, NewHealthHandler(db, rdb, "1.0.0"))
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, "DEPENDENCY_UNAVAILABLE", body.Error.Code)
		assert.Equal(t, "degraded", body.Error.Details.Status)
		assert.Equal(t, "down", body.Error.Details.Checks["database"])
		assert.Equal(t, "up", body.Error.Details.Checks["redis"])
	})

	t.Run("redis down", func(t *testing.T) {
		broken := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: broken.Addr(), MaxRetries: -1})
		defer client.Close()
		broken.Close()

		status, body := callHealth(t, NewHealthHandler(nil, client, "1.0.0"))
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, "down", body.Error.Details.Checks["redis"])
		_, hasDB := body.Error.Details.Checks["database"]
		assert.False(t, hasDB)
	})

	t.Run("no dependencies configured", func(t *testing.T) {
		status, body := callHealth(t, NewHealthHandler(nil, nil, "1.0.0"))
		assert.Equal(t, http.StatusOK, status)
		assert.Empty(t, body.Data.Checks)
	})
}
