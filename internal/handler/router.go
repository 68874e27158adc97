package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/boundary-tools/backend/internal/handler/chat"
	"github.com/zhouzirui/boundary-tools/backend/internal/handler/stream"
	toolHandler "github.com/zhouzirui/boundary-tools/backend/internal/handler/tool"
	middlewarePkg "github.com/zhouzirui/boundary-tools/backend/internal/middleware"
	"github.com/zhouzirui/boundary-tools/backend/internal/model/tool"
	"github.com/zhouzirui/boundary-tools/backend/internal/service/governor"
	"github.com/zhouzirui/boundary-tools/backend/pkg/utils"
)

// Options carries what the router needs besides the governor.
type Options struct {
	CookieName    string
	AllowedOrigin string
}

// NewRouter wires HTTP routes to core services. A nil streamer serves the SSE
// endpoint with one buffered generator call.
func NewRouter(tools tool.Store, gov *governor.Governor, streamer stream.Streamer, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(opts.AllowedOrigin))

	// Create handlers
	catalogHandler := toolHandler.New(tools, gov.SessionDuration())
	chatHandler := chat.New(gov, opts.CookieName)
	streamHandler := stream.New(gov, streamer, opts.CookieName)
	wsHandler := stream.NewWebSocketHandler(gov, opts.CookieName)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		catalogHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		wsHandler.RegisterWebSocketRoutes(api)
	})

	return r
}
