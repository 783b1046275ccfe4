package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jason-s-yu/trickroom/internal/dispatch"
)

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeActionError maps an ActionError onto an HTTP status.
func writeActionError(w http.ResponseWriter, aerr *dispatch.ActionError) {
	status := http.StatusBadRequest
	switch aerr.Code {
	case dispatch.CodeRoomNotFound, dispatch.CodeInvalidRoom:
		status = http.StatusNotFound
	case dispatch.CodeRoomFull, dispatch.CodeGameInProgress:
		status = http.StatusConflict
	case dispatch.CodeActorUnauthenticated:
		status = http.StatusUnauthorized
	case dispatch.CodeNotYourTurn:
		status = http.StatusForbidden
	}
	writeJSON(w, status, aerr)
}
