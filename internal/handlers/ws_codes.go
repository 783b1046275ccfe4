// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the room handler.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Auth token was invalid and no guest identity could be issued.
	NotAMemberError       = 3002 // Player has not joined the room over HTTP first.
	InvalidRoomCodeError  = 3003 // Target room code in the WS URL does not exist.
	RoomClosedError       = 3004 // Room was closed while the player was connected.
)
