package handler

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/realty-assistant/backend/internal/config"
	"github.com/zhouzirui/realty-assistant/backend/internal/handler/auth"
	"github.com/zhouzirui/realty-assistant/backend/internal/handler/chat"
	middlewarePkg "github.com/zhouzirui/realty-assistant/backend/internal/middleware"
	authService "github.com/zhouzirui/realty-assistant/backend/internal/service/auth"
	chatService "github.com/zhouzirui/realty-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/realty-assistant/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. authSvc may be nil when Google sign-in is not configured.
func NewRouter(cfg *config.Config, chatSvc *chatService.Service, authSvc *authService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.CORS.AllowedOrigins))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Realty assistant backend running"})
	})

	mountStatic(r, cfg.Server.StaticDir)

	chatHandler := chat.New(chatSvc, cfg.CORS.AllowedOrigins)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)

		if authSvc != nil {
			auth.New(authSvc, cfg.Auth.FrontendURL).RegisterRoutes(api)
			return
		}

		// 未配置 Google 登录时返回 503，而不是 404
		api.HandleFunc("/auth/*", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondError(w, http.StatusServiceUnavailable, "google sign-in unavailable")
		})
	})

	return r
}

// mountStatic serves dir under /static when it exists.
func mountStatic(r chi.Router, dir string) {
	if dir == "" {
		return
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Printf("[router] static directory %q not found, skipping /static", dir)
		return
	}

	fs := http.StripPrefix("/static", http.FileServer(http.Dir(dir)))
	r.Get("/static", http.RedirectHandler("/static/", http.StatusMovedPermanently).ServeHTTP)
	r.Get("/static/*", fs.ServeHTTP)
}
