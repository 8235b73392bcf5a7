// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ws

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/quickly-vote/auth"
	"github.com/danielhkuo/quickly-vote/broadcast"
	"github.com/danielhkuo/quickly-vote/middleware"
)

// Server upgrades GET /ws requests into subscriber connections
type Server struct {
	hub      *broadcast.Hub
	voter    Voter
	salt     string
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewServer(hub *broadcast.Hub, voter Voter, salt, allowedOrigin string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		hub:    hub,
		voter:  voter,
		salt:   salt,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigin),
		},
	}
}

func originChecker(allowed string) func(r *http.Request) bool {
	if allowed == "" || allowed == "*" {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == allowed
	}
}

// ServeHTTP blocks for the life of the connection
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	ipHash := auth.HashIP(middleware.GetClientIP(r), s.salt)
	client := newClient(conn, s.hub, s.voter, ipHash, s.logger)

	s.logger.Debug("socket connected", "client_id", client.id)

	go client.writePump()
	client.readPump(r.Context())
}
