/*
Package handler provides the HTTP handler function for WebSocket connection
upgrading and initialization.

Browsers cannot set an Authorization header on a WebSocket handshake, so the
session token is accepted as a query parameter here and verified before the
upgrade.
*/
package handler

import (
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"veilchat/internal/app/realtime"
	"veilchat/internal/pkg/errs"
	"veilchat/internal/pkg/limiter"
	"veilchat/internal/pkg/logx"
	"veilchat/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection
// requests: rate limiting, token verification, upgrade, and client lifecycle.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		token := r.URL.Query().Get("token")
		if token == "" {
			logx.Warn("WebSocket request rejected: Missing token query parameter")
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		userID, err := deps.Identity.Verify(token)
		if err != nil {
			logx.Warn("WebSocket connection rejected: Invalid token")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := realtime.NewConn(deps.Hub, conn, userID)

		go client.WritePump()

		logx.Info("WebSocket connection established", "user_id", userID)

		client.ReadPump()
	}
}
