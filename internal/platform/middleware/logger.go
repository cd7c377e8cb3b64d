package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ClinicianHeader carries the uuid of the acting clinician, set by API
// clients on every mutating call. It feeds both the request log and audit
// event attribution.
const ClinicianHeader = "X-Clinician-Id"

// Logger emits one structured line per request, tagged with the request id
// and, when supplied, the acting clinician.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid, _ := c.Get("request_id").(string)

			err := next(c)

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}
			evt = evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Int64("bytes_out", c.Response().Size).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP())
			if cid := req.Header.Get(ClinicianHeader); cid != "" {
				evt = evt.Str("clinician_id", cid)
			}
			evt.Msg("request")

			return err
		}
	}
}
