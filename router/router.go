// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/circle-sketch/circle"
	"github.com/danielhkuo/circle-sketch/cliparse"
	"github.com/danielhkuo/circle-sketch/coordinator"
	"github.com/danielhkuo/circle-sketch/handlers"
	"github.com/danielhkuo/circle-sketch/middleware"
	"github.com/danielhkuo/circle-sketch/rounds"
)

// Deps are the long-lived services the handlers share.
type Deps struct {
	Machine     *rounds.Machine
	Roster      *circle.Manager
	Coordinator *coordinator.Coordinator
}

func NewRouter(deps Deps, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	commandHandler := handlers.NewCommandHandler(deps.Machine, deps.Roster, deps.Coordinator, cfg)
	messageHandler := handlers.NewDirectMessageHandler(deps.Coordinator)
	signed := middleware.VerifySignature(cfg.BridgeSecret)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Bridge callbacks (signed)
	mux.HandleFunc("POST /commands/{name}", middleware.WithLogging(signed(commandHandler.Handle)))
	mux.HandleFunc("POST /events/direct-message", middleware.WithLogging(signed(messageHandler.Handle)))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("circle-sketch bridge API v1"))
	})

	return mux
}
