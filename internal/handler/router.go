/*
Package handler provides the HTTP handlers and routing setup for the VeilChat server.

This file defines the main Router, applying logging, CORS, and IP-based rate
limiting middleware before delegating requests to specific handlers (API and
WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"veilchat/internal/pkg/auth/jwt"
	"veilchat/internal/pkg/limiter"
	"veilchat/internal/pkg/logx"
	"veilchat/internal/pkg/resp"
)

const (
	// SignupRate throttles account creation per source IP.
	SignupRate  = 0.05
	SignupBurst = 2

	// ChatCreateRate throttles conversation creation per source IP.
	ChatCreateRate  = 0.5
	ChatCreateBurst = 10

	// ConnectRate throttles WebSocket connection attempts per source IP.
	ConnectRate  = 0.2
	ConnectBurst = 5
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, configures CORS, and applies global
// and per-route middleware.
func Router(deps *AppDeps) http.Handler {
	signupLimiter := limiter.NewIPRateLimiter(rate.Limit(SignupRate), SignupBurst)
	chatCreateLimiter := limiter.NewIPRateLimiter(rate.Limit(ChatCreateRate), ChatCreateBurst)
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":  "ok",
			"service": "VeilChat Server",
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/auth", func(auth chi.Router) {
			rateLimitedSignup := signupLimiter.Middleware(HandleSignUp(deps))
			auth.Post("/signup", http.HandlerFunc(rateLimitedSignup.ServeHTTP))
			auth.Post("/signin", HandleSignIn(deps))
			auth.Post("/signout", HandleSignOut(deps))
			auth.Post("/restore", HandleRestoreSession(deps))
		})

		api.Route("/user", func(u chi.Router) {
			u.Get("/profile", HandleGetProfile(deps))
			u.Patch("/profile", HandleUpdateProfile(deps))
			u.Get("/lookup", HandleLookupHandle(deps))
		})

		api.Route("/chats", func(chats chi.Router) {
			chats.Get("/", HandleListChats(deps))

			rateLimitedCreate := chatCreateLimiter.Middleware(HandleCreateChat(deps))
			chats.Post("/", http.HandlerFunc(rateLimitedCreate.ServeHTTP))

			chats.Post("/wipe", HandlePanicWipe(deps))

			chats.Route("/{chatID}", func(one chi.Router) {
				one.Delete("/", HandleDeleteChat(deps))
				one.Post("/read", HandleMarkChatRead(deps))
				one.Post("/toggle/{flag}", HandleToggleFlag(deps))

				one.Get("/messages", HandleListMessages(deps))
				one.Post("/messages", HandleSendMessage(deps))
			})
		})

		if deps.Media != nil {
			api.Route("/media", func(media chi.Router) {
				media.Post("/avatar/presign", HandlePresignAvatar(deps))
				media.Post("/upload/presign", HandlePresignMediaUpload(deps))
				media.Get("/download/presign", HandlePresignDownload(deps))
			})
		}
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, connectLimiter, deps))

	return r
}
