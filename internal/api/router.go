package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xaenox/astro-bot/internal/consultation"
)

// NewRouter wires the HTTP and WebSocket endpoints for svc.
func NewRouter(svc *consultation.Service, allowedOrigins []string, logger *zap.Logger) http.Handler {
	h := NewHandler(svc, logger)
	ws := NewWebSocketHandler(svc, allowedOrigins, logger)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(CORS(allowedOrigins))

	h.RegisterHealth(r)
	h.RegisterRoutes(r)

	r.Get("/ws/sessions/{id}", ws.ServeHTTP)

	return r
}
