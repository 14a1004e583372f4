package metrics

import (
	"net/http"
	"time"
)

// statusRecorder captures the status code a handler writes. A handler that
// never calls WriteHeader has implicitly written 200.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware instruments every request on the registry: request count
// and duration by method/path/status class, plus an in-flight gauge.
func HTTPMiddleware(reg *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reg.InFlightInc()
			start := time.Now()

			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r)

			reg.InFlightDec()
			reg.RecordRequest(r.Method, r.URL.Path, sr.status, time.Since(start).Seconds())
		})
	}
}
