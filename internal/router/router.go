package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"yt-dataset-harvester/internal/handlers"
	"yt-dataset-harvester/internal/middleware"
	"yt-dataset-harvester/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	statusHandler *handlers.StatusHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	limiter := middleware.NewRateLimiter(120, time.Minute)

	r.Get("/health", statusHandler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware)
			r.Use(jwtAuth.Middleware)
			r.Get("/status", statusHandler.Status)
			r.Get("/checkpoints", statusHandler.Checkpoints)
			r.Get("/batches", statusHandler.Batches)
		})

		// token checked by the hub itself
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
