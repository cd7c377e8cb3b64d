package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// DatabaseHealth is the Postgres section of the health endpoint payload.
type DatabaseHealth struct {
	Reachable  bool   `json:"reachable"`
	ConnsInUse int32  `json:"conns_in_use"`
	ConnsIdle  int32  `json:"conns_idle"`
	ConnsMax   int32  `json:"conns_max"`
	PingMillis int64  `json:"ping_ms"`
	Error      string `json:"error,omitempty"`
}

// CheckDatabase pings the pool and snapshots its connection counts.
func CheckDatabase(ctx context.Context, pool *pgxpool.Pool) DatabaseHealth {
	start := time.Now()
	err := pool.Ping(ctx)
	stat := pool.Stat()

	h := DatabaseHealth{
		Reachable:  err == nil,
		ConnsInUse: stat.AcquiredConns(),
		ConnsIdle:  stat.IdleConns(),
		ConnsMax:   stat.MaxConns(),
		PingMillis: time.Since(start).Milliseconds(),
	}
	if err != nil {
		h.Error = err.Error()
	}
	return h
}

func healthStatus(h DatabaseHealth) (int, string) {
	if !h.Reachable {
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusOK, "ok"
}

// HealthHandler serves the record service health endpoint. The service is
// unavailable when Postgres cannot be reached; the publisher and the legacy
// store are best-effort collaborators and do not gate readiness.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		h := CheckDatabase(ctx, pool)
		code, status := healthStatus(h)
		return c.JSON(code, map[string]any{
			"service":  "dhos-services",
			"status":   status,
			"database": h,
		})
	}
}
