// internal/dispatch/errors.go
package dispatch

import (
	"errors"

	"github.com/jason-s-yu/trickroom/internal/game"
	"github.com/jason-s-yu/trickroom/internal/room"
)

// ErrorCode is the machine-readable reason an action was rejected.
type ErrorCode string

const (
	CodeRoomNotFound         ErrorCode = "room_not_found"
	CodeRoomFull             ErrorCode = "room_full"
	CodeGameInProgress       ErrorCode = "game_in_progress"
	CodeInvalidRoom          ErrorCode = "invalid_room"
	CodeGameNotStarted       ErrorCode = "game_not_started"
	CodeNotYourTurn          ErrorCode = "not_your_turn"
	CodeIllegalPlay          ErrorCode = "illegal_play"
	CodeActorUnauthenticated ErrorCode = "actor_unauthenticated"
)

// ActionError is returned to, and only to, the actor whose request failed.
type ActionError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *ActionError) Error() string {
	return string(e.Code) + ": " + e.Message
}

func newActionError(code ErrorCode, msg string) *ActionError {
	return &ActionError{Code: code, Message: msg}
}

// AsActionError maps registry and session errors onto the public error codes.
func AsActionError(err error) *ActionError {
	if err == nil {
		return nil
	}
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return newActionError(CodeRoomNotFound, err.Error())
	case errors.Is(err, room.ErrRoomFull):
		return newActionError(CodeRoomFull, err.Error())
	case errors.Is(err, room.ErrGameInProgress):
		return newActionError(CodeGameInProgress, err.Error())
	case errors.Is(err, game.ErrNotYourTurn), errors.Is(err, game.ErrNotInGame):
		return newActionError(CodeNotYourTurn, err.Error())
	default:
		return newActionError(CodeIllegalPlay, err.Error())
	}
}
