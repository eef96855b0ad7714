package handlers

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/taobei/auth/internal/config"
	"github.com/taobei/auth/internal/middleware"
)

// NewRouter wraps the whole mux in the middleware chain. mux.Router.Use
// only runs for matched routes, which would leave 404 and 405 responses
// unlogged and unlimited.
func NewRouter(
	authHandlers *AuthHandlers,
	authMiddleware *middleware.AuthMiddleware,
	ipLimiter *middleware.IPRateLimiter,
	cfg *config.ServerConfig,
	logger *logrus.Logger,
) http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(authHandlers.NotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(authHandlers.MethodNotAllowed)

	router.HandleFunc("/health", authHandlers.Health).Methods("GET", "OPTIONS")

	auth := router.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/send-verification-code", authHandlers.SendVerificationCode).Methods("POST", "OPTIONS")
	auth.HandleFunc("/login", authHandlers.Login).Methods("POST", "OPTIONS")
	auth.HandleFunc("/register", authHandlers.Register).Methods("POST", "OPTIONS")

	protected := auth.PathPrefix("/").Subrouter()
	protected.Use(authMiddleware.RequireAuth)
	protected.HandleFunc("/me", authHandlers.Me).Methods("GET")

	var handler http.Handler = router
	handler = ipLimiter.Limit(handler)
	handler = middleware.CORSMiddleware(cfg.AllowedOrigins)(handler)
	handler = middleware.SecurityHeaders(handler)
	handler = middleware.LoggingMiddleware(logger)(handler)
	handler = middleware.Recover(logger)(handler)

	if cfg.TrustProxy {
		return handlers.ProxyHeaders(handler)
	}
	return handler
}
