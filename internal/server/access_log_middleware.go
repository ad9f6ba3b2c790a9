package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

func (s *Server) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()

		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		entry := AccessLogEntry{
			RequestID: requestID,
			Timestamp: started.UTC(),
			Method:    r.Method,
			Path:      r.URL.Path,
			Route:     routeName(r),
		}
		if id, ok := mux.Vars(r)["id"]; ok {
			entry.DonationID = id
		}

		ctx, info := withAccessInfo(r.Context())
		wrw := newResponseWriterWrapper(w)

		next.ServeHTTP(wrw, r.WithContext(ctx))

		entry.StatusCode = wrw.GetStatusCode()
		entry.Bytes = wrw.GetBytes()
		entry.ActorUserID = info.actorUserID.Load()
		entry.Duration = time.Since(started)

		metrics.HTTPRequestDuration.
			WithLabelValues(entry.Route, strconv.Itoa(entry.StatusCode)).
			Observe(entry.Duration.Seconds())

		s.AccessLog.LogEntry(r.Context(), entry)
	})
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if name := route.GetName(); name != "" {
			return name
		}
	}
	return "unknown"
}
