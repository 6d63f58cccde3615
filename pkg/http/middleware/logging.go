package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"MarketPulse/pkg/logger"
)

// RequestLogging logs failed requests as errors, slow ones as warnings and
// the rest at debug level.
func RequestLogging(l *logger.Logger, slow time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			d := time.Since(start)
			status := statusOf(c, err)
			fields := []logger.Field{
				logger.String("method", c.Request().Method),
				logger.String("route", routeLabel(c)),
				logger.Int("status", status),
				logger.Duration("duration", d),
			}
			switch {
			case status >= 500:
				if err != nil {
					fields = append(fields, logger.Error(err))
				}
				l.Error("http request failed", fields...)
			case slow > 0 && d >= slow:
				l.Warn("http request slow", fields...)
			default:
				l.Debug("http request", fields...)
			}
			return err
		}
	}
}
