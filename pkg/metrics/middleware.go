package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vango-dev/hashsync/internal/errors"
)

// Middleware records request counts and durations. Routes are labelled with
// their chi pattern so path parameters do not create new series.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := routePattern(r)
		c.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		c.requests.WithLabelValues(route, statusClass(ww.Status())).Inc()
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func statusClass(status int) string {
	if status == 0 {
		status = http.StatusOK
	}
	return strconv.Itoa(status/100) + "xx"
}

// categorizeError maps an error to a low-cardinality label.
func categorizeError(err error) string {
	if err == nil {
		return "ok"
	}
	switch errors.Code(err) {
	case errors.ErrNotFound.Code:
		return "not_found"
	case errors.ErrStoreIO.Code:
		return "io"
	case errors.ErrProtocol.Code:
		return "protocol"
	default:
		return "internal"
	}
}
