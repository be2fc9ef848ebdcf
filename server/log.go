package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Logger logs one line per request once the handler has finished.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		slog.Info("request",
			"uri", r.RequestURI,
			"method", r.Method,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"from", r.RemoteAddr,
			"took", time.Since(start),
		)
	})
}
