package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging logs one entry per request at a level matching the response status.
func Logging(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			entry := logger.WithFields(logrus.Fields{
				"request_id":  GetRequestID(r.Context()),
				"method":      r.Method,
				"path":        r.URL.Path,
				"query":       r.URL.RawQuery,
				"ip":          getClientIP(r),
				"status_code": rec.status,
				"latency":     time.Since(start).String(),
			})
			switch {
			case rec.status >= 500:
				entry.Error("Request completed with server error")
			case rec.status >= 400:
				entry.Warn("Request completed with client error")
			default:
				entry.Info("Request completed")
			}
		})
	}
}
