// internal/handlers/room.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jason-s-yu/trickroom/internal/auth"
	"github.com/jason-s-yu/trickroom/internal/dispatch"
	"github.com/sirupsen/logrus"
)

// roomCode reads the {code} path parameter. Codes are matched case-insensitively.
func roomCode(r *http.Request) string {
	return strings.ToUpper(chi.URLParam(r, "code"))
}

// CreateRoomHandler opens a room hosted by the caller and returns its code.
func CreateRoomHandler(d *dispatch.Dispatcher, iss *auth.Issuer, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := EnsureIdentity(iss, w, r)
		if err != nil {
			logger.WithError(err).Error("Failed to issue identity")
			http.Error(w, "could not issue identity", http.StatusInternalServerError)
			return
		}
		ev, err := d.CreateRoom(id)
		if err != nil {
			http.Error(w, "could not create room", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"code":     ev.Code,
			"room":     ev.Info,
			"playerId": id.ID,
		})
	}
}

// JoinRoomHandler seats the caller in {code}.
func JoinRoomHandler(d *dispatch.Dispatcher, iss *auth.Issuer, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := EnsureIdentity(iss, w, r)
		if err != nil {
			logger.WithError(err).Error("Failed to issue identity")
			http.Error(w, "could not issue identity", http.StatusInternalServerError)
			return
		}
		code := roomCode(r)
		if err := d.JoinRoom(code, id); err != nil {
			writeActionError(w, dispatch.AsActionError(err))
			return
		}
		rm, ok := d.Registry().GetRoom(code)
		if !ok {
			writeActionError(w, &dispatch.ActionError{Code: dispatch.CodeRoomNotFound, Message: "room closed while joining"})
			return
		}
		rm.Mu.Lock()
		info := rm.Snapshot()
		rm.Mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"code":     code,
			"room":     info,
			"playerId": id.ID,
		})
	}
}

// LeaveRoomHandler gives up the caller's seat in {code}.
func LeaveRoomHandler(d *dispatch.Dispatcher, iss *auth.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := CookieIdentity(iss, r)
		if err != nil {
			writeActionError(w, &dispatch.ActionError{Code: dispatch.CodeActorUnauthenticated, Message: err.Error()})
			return
		}
		if err := d.LeaveRoom(roomCode(r), id.ID); err != nil {
			writeActionError(w, dispatch.AsActionError(err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetRoomHandler returns the public snapshot of {code}.
func GetRoomHandler(d *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := roomCode(r)
		rm, ok := d.Registry().GetRoom(code)
		if !ok {
			writeActionError(w, &dispatch.ActionError{Code: dispatch.CodeRoomNotFound, Message: "no room with code " + code})
			return
		}
		rm.Mu.Lock()
		info := rm.Snapshot()
		rm.Mu.Unlock()
		writeJSON(w, http.StatusOK, info)
	}
}
