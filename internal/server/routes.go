package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/boardsync/internal/api/v1"
	"github.com/gosuda/boardsync/internal/api/ws"
)

func registerAPIRoutes(api huma.API, hub v1.HubAdmin) {
	v1.RegisterHubRoutes(api, hub)
}

func registerWSRoutes(r chi.Router, handler *ws.Handler) {
	r.Handle("/ws", handler)
}
