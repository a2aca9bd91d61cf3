package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/svirmi/gift-ledger/internal/auth"
	"github.com/svirmi/gift-ledger/internal/helpers"
	"github.com/svirmi/gift-ledger/internal/role"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gift_ledger",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route and status code.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gift_ledger",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// logRequest logs and measures every request. Routes are labelled by their
// mux pattern to keep label cardinality bounded.
func (app *application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()

		app.logger.Info("request",
			"method", r.Method,
			"uri", r.URL.RequestURI(),
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
			"ip", r.RemoteAddr,
		)
	})
}

// requireAuth verifies the bearer token and stores the principal in the
// request context.
func (app *application) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r)
		if err != nil {
			helpers.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		p, err := app.issuer.Verify(token)
		if err != nil {
			app.logger.Debug("token rejected", "error", err)
			helpers.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	}
}

// requireRole is requireAuth plus a minimum role level.
func (app *application) requireRole(level role.Level, next http.HandlerFunc) http.HandlerFunc {
	return app.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		p, _ := auth.FromContext(r.Context())
		if p.Role < level {
			helpers.WriteError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r)
	})
}
