// File: internal/handlers/routes.go
package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iyunix/go-livechat/internal/middleware"
	"github.com/iyunix/go-livechat/internal/ratelimit"
)

// RouterDeps collects what NewRouter mounts.
type RouterDeps struct {
	Widget         *WidgetHandler
	Console        *ConsoleHandler
	Auth           *AuthHandler
	Log            *LogHandler
	TokenValidator middleware.TokenValidator
	LoginLimiter   *ratelimit.MemoryRateLimiter
	Origins        *middleware.OriginPolicy
	SecureCookie   bool
	Logger         Logger
}

// NewRouter builds the HTTP and WebSocket surface. CORS wraps the whole
// router so preflight requests are answered before route matching.
func NewRouter(d RouterDeps) http.Handler {
	r := mux.NewRouter()

	r.Use(middleware.RecoverPanic(d.Logger))
	r.Use(middleware.LoggingMiddleware(d.Logger))

	// --- Public Routes ---
	r.HandleFunc("/health", Health).Methods("GET")
	r.HandleFunc("/api/log", d.Log.LogFrontendEvent).Methods("POST")

	var login http.Handler = http.HandlerFunc(d.Auth.Login)
	if d.LoginLimiter != nil {
		login = middleware.LoginRateLimit(d.LoginLimiter, "operator_login", d.Logger)(login)
	}
	r.Handle("/api/operator/login", login).Methods("POST")
	r.HandleFunc("/api/operator/logout", d.Auth.Logout).Methods("POST")

	// --- Widget Routes (anonymous visitors) ---
	widget := r.PathPrefix("/api/widget").Subrouter()
	widget.HandleFunc("/conversation", d.Widget.OpenConversation).Methods("POST")
	widget.HandleFunc("/conversation/messages", d.Widget.GetMessages).Methods("GET")
	widget.HandleFunc("/conversation/messages", d.Widget.SendMessage).Methods("POST")
	widget.HandleFunc("/ws", d.Widget.ServeWS).Methods("GET")

	// --- Operator Routes ---
	authMiddleware := middleware.NewOperatorAuthMiddleware(d.TokenValidator, d.Logger, d.SecureCookie)

	r.Handle("/api/operator/me", authMiddleware(http.HandlerFunc(d.Auth.Me))).Methods("GET")

	console := r.PathPrefix("/api/console").Subrouter()
	console.Use(authMiddleware)
	console.HandleFunc("/conversations", d.Console.GetConversations).Methods("GET")
	console.HandleFunc("/conversations/{id:[0-9]+}/messages", d.Console.GetMessages).Methods("GET")
	console.HandleFunc("/conversations/{id:[0-9]+}/messages", d.Console.SendMessage).Methods("POST")
	console.HandleFunc("/conversations/{id:[0-9]+}/close", d.Console.CloseConversation).Methods("POST")
	console.HandleFunc("/ws", d.Console.ServeWS).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Not Found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})

	return middleware.CORS(d.Origins)(r)
}
