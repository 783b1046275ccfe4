// internal/handlers/router.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/trickroom/internal/auth"
	"github.com/jason-s-yu/trickroom/internal/dispatch"
	"github.com/jason-s-yu/trickroom/internal/middleware"
	"github.com/sirupsen/logrus"
)

// NewRouter wires the room endpoints.
//
//	POST /room/create        open a room, caller is host
//	GET  /room/{code}        public room snapshot
//	POST /room/{code}/join   take a seat
//	POST /room/{code}/leave  give up a seat
//	GET  /room/ws/{code}     websocket, subprotocol "room"
func NewRouter(d *dispatch.Dispatcher, hub *Hub, iss *auth.Issuer, logger *logrus.Logger, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"https://*", "http://*"}
	}
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true, // identity rides in the auth_token cookie
		MaxAge:           300,
	}))
	r.Use(middleware.LogMiddleware(logger))

	r.Route("/room", func(r chi.Router) {
		r.Post("/create", CreateRoomHandler(d, iss, logger))
		r.Get("/ws/{code}", RoomWSHandler(d, hub, iss, logger, allowedOrigins))
		r.Get("/{code}", GetRoomHandler(d))
		r.Post("/{code}/join", JoinRoomHandler(d, iss, logger))
		r.Post("/{code}/leave", LeaveRoomHandler(d, iss))
	})
	return r
}
