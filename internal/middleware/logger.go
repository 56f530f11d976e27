package middleware

import (
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
)

// RequestLogger writes one access log line per request to the echo
// logger.  Install it after middleware.RequestID so the id is known.
func RequestLogger() echo.MiddlewareFunc {
    return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogMethod:    true,
        LogURI:       true,
        LogStatus:    true,
        LogLatency:   true,
        LogRequestID: true,
        LogRemoteIP:  true,
        LogError:     true,
        HandleError:  true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            if v.Error != nil || v.Status >= 500 {
                c.Logger().Warnf("%s %s %d %s id=%s ip=%s err=%v", v.Method, v.URI, v.Status, v.Latency, v.RequestID, v.RemoteIP, v.Error)
                return nil
            }
            c.Logger().Infof("%s %s %d %s id=%s ip=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID, v.RemoteIP)
            return nil
        },
    })
}
