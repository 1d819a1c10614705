package apiapp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authsvc "github.com/ivankudzin/tgapp/chatguard/internal/services/auth"
	autodeletesvc "github.com/ivankudzin/tgapp/chatguard/internal/services/autodelete"
	settingssvc "github.com/ivankudzin/tgapp/chatguard/internal/services/settings"
	"github.com/ivankudzin/tgapp/chatguard/internal/transport/http/handlers"
)

type Dependencies struct {
	SettingsService   *settingssvc.Service
	AutoDeleteService *autodeletesvc.Service
	Tokens            *authsvc.JWTManager
	MetricsHandler    http.Handler
	Logger            *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	chatsHandler := handlers.NewChatsHandler(deps.SettingsService, deps.AutoDeleteService)
	authMW := AuthMiddleware(deps.Tokens, deps.Logger)

	r.Get("/healthz", healthHandler.Get)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(authMW)
		r.Put("/v1/chats/{chatID}", chatsHandler.Bind)
		r.Get("/v1/chats/{chatID}/rules", chatsHandler.Rules)
		r.Put("/v1/chats/{chatID}/rules/{category}", chatsHandler.UpdateRule)
		r.Post("/v1/chats/{chatID}/rules/{category}/whitelist", chatsHandler.AddWhitelist)
		r.Delete("/v1/chats/{chatID}/rules/{category}/whitelist", chatsHandler.RemoveWhitelist)
		r.Get("/v1/chats/{chatID}/punishments", chatsHandler.Punishments)
		r.Get("/v1/chats/{chatID}/autodelete", chatsHandler.AutoDelete)
		r.Put("/v1/chats/{chatID}/autodelete/{kind}", chatsHandler.UpdateAutoDelete)
	})
}
