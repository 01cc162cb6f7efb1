package server

import (
	"net/url"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/taskflow/internal/api/v1"
	"github.com/gosuda/taskflow/internal/api/ws"
)

func registerAuthRoutes(api huma.API, authSvc v1.AuthService) {
	v1.RegisterAuthRoutes(api, authSvc)
}

func registerAPIRoutes(api huma.API, store v1.DataStore, broker Broker) {
	v1.RegisterBoardRoutes(api, store, broker)
	v1.RegisterColumnRoutes(api, store, broker)
	v1.RegisterTaskRoutes(api, store, broker)
	v1.RegisterCommentRoutes(api, store, broker)
	v1.RegisterMemberRoutes(api, store, broker)
	v1.RegisterPresenceRoutes(api, store, broker)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/board/{boardID}", hub.ServeBoard)
	r.Get("/user", hub.ServeUser)
}

// originPatterns turns CORS origins into the host patterns the websocket
// handshake accepts. "*" passes through.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			patterns = append(patterns, o)
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
