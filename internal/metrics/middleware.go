package metrics

import (
	"net/http"
	"time"
)

// unmatchedRoute labels requests the mux did not route, so scanners
// probing random paths cannot grow the label set.
const unmatchedRoute = "unmatched"

// statusRecorder remembers the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.wroteHeader {
		sr.status = code
		sr.wroteHeader = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// HTTPMiddleware records request count, latency and in-flight requests.
// Routed requests are labelled with their mux pattern so backtest ids never
// become label values. Paths in skip (the scrape endpoint) are not recorded.
func HTTPMiddleware(reg *Registry, skip ...string) func(http.Handler) http.Handler {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipped[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			reg.InFlightInc()
			defer reg.InFlightDec()

			start := time.Now()
			sr := newStatusRecorder(w)
			next.ServeHTTP(sr, r)

			reg.RecordRequest(r.Method, routeLabel(r), sr.status, time.Since(start).Seconds())
		})
	}
}

// routeLabel reads the pattern the mux stored on the request. The mux sets
// it on the same *http.Request it was handed, so it is visible here after
// ServeHTTP returns.
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return unmatchedRoute
}
