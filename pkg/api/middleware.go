package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
	"github.com/YuminosukeSato/cropadvisor/pkg/log"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-Id"

const unmatchedRoute = "unmatched"

type contextKey int

const requestIDKey contextKey = iota

// RequestID returns the ID assigned by the request ID middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestIDMiddleware keeps a valid incoming UUID or generates a new one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// recoveryMiddleware turns a panic into the generic 500.
func recoveryMiddleware(logger log.Logger, metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if metrics != nil {
						metrics.panics.Inc()
					}
					logger.Error("panic recovered", errors.NewPanicError(r.URL.Path, v),
						log.RequestIDKey, RequestID(r.Context()),
						log.MethodKey, r.Method,
					)
					writeError(w, internalError(msgInternal))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// accessMiddleware logs every request and records RED metrics under the
// route template, so unknown paths do not explode label cardinality.
func accessMiddleware(router *mux.Router, logger log.Logger, metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			if metrics != nil {
				metrics.inFlight.Inc()
				defer metrics.inFlight.Dec()
			}

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			elapsed := time.Since(start)
			route := routeTemplate(router, r)
			if metrics != nil {
				metrics.observeRequest(r.Method, route, rw.Status(), elapsed)
			}
			logger.Info("request completed",
				log.RequestIDKey, RequestID(r.Context()),
				log.MethodKey, r.Method,
				log.RouteKey, route,
				log.StatusKey, rw.Status(),
				log.DurationMsKey, elapsed.Milliseconds(),
			)
		})
	}
}

func routeTemplate(router *mux.Router, r *http.Request) string {
	var match mux.RouteMatch
	if !router.Match(r, &match) || match.MatchErr != nil || match.Route == nil {
		return unmatchedRoute
	}
	tpl, err := match.Route.GetPathTemplate()
	if err != nil {
		return unmatchedRoute
	}
	return tpl
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if rw.written {
		return
	}
	rw.statusCode = statusCode
	rw.written = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Status returns the written status code.
func (rw *responseWriter) Status() int {
	return rw.statusCode
}
