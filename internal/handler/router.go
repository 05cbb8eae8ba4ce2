package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/penpal/backend/internal/auth"
	"github.com/zhouzirui/penpal/backend/internal/handler/chat"
	"github.com/zhouzirui/penpal/backend/internal/handler/live"
	middlewarePkg "github.com/zhouzirui/penpal/backend/internal/middleware"
	chatService "github.com/zhouzirui/penpal/backend/internal/service/chat"
)

// Deps are the services the router exposes.
type Deps struct {
	Chat     *chatService.Service
	Verifier auth.Verifier
	// Live is optional; without it the websocket and SSE feeds are not served.
	Live   live.Subscriber
	Logger *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Server is alive!"))
	})

	chatHandler := chat.New(deps.Chat, logger.Named("chat"))

	r.Route("/api/chat", func(api chi.Router) {
		api.Group(func(api chi.Router) {
			api.Use(auth.Middleware(deps.Verifier, logger.Named("auth")))
			chatHandler.RegisterRoutes(api)
		})

		if deps.Live != nil {
			liveHandler := live.New(deps.Live, logger.Named("live"))
			api.Group(func(api chi.Router) {
				api.Use(auth.Middleware(deps.Verifier, logger.Named("auth"), auth.AllowQueryToken()))
				liveHandler.RegisterRoutes(api)
			})
		}
	})

	return r
}
