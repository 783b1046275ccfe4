// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/trickroom/internal/auth"
	"github.com/jason-s-yu/trickroom/internal/deck"
	"github.com/jason-s-yu/trickroom/internal/dispatch"
	"github.com/jason-s-yu/trickroom/internal/game"
	"github.com/jason-s-yu/trickroom/internal/middleware"
	"github.com/sirupsen/logrus"
)

const (
	roomSubprotocol = "room"
	writeTimeout    = 5 * time.Second
	pingInterval    = 30 * time.Second
)

// packet is one inbound client message.
type packet struct {
	Type  string                 `json:"type"`
	Seq   int                    `json:"seq"`
	Cards []string               `json:"cards,omitempty"`
	Rules map[string]interface{} `json:"rules,omitempty"`
}

// RoomWSHandler attaches a seated player's websocket to {code}. The player
// must have joined over HTTP first; the socket only carries actions and events.
func RoomWSHandler(d *dispatch.Dispatcher, hub *Hub, iss *auth.Issuer, logger *logrus.Logger, allowedOrigins []string) http.HandlerFunc {
	originHosts := originPatterns(allowedOrigins)
	return func(w http.ResponseWriter, r *http.Request) {
		code := roomCode(r)

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{roomSubprotocol},
			OriginPatterns: originHosts,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != roomSubprotocol {
			c.Close(BadSubprotocolError, "client must speak the room subprotocol")
			return
		}

		id, err := CookieIdentity(iss, r)
		if err != nil {
			c.Close(InvalidAuthTokenError, "invalid auth token")
			return
		}

		rm, ok := d.Registry().GetRoom(code)
		if !ok {
			c.Close(InvalidRoomCodeError, "room does not exist")
			return
		}
		rm.Mu.Lock()
		_, seated := rm.Member(id.ID)
		rm.Mu.Unlock()
		if !seated {
			c.Close(NotAMemberError, "join the room before connecting")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		cl := hub.Register(code, id.ID)
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		d.Reconnect(code, id.ID)
		if view, ok := d.View(code, id.ID); ok {
			cl.writeJSON(map[string]interface{}{
				"type":  "snapshot",
				"room":  code,
				"state": view,
			})
		}

		go writePump(ctx, cancel, c, cl, logger)
		err = readPump(ctx, c, d, cl, code, logger)

		// A socket replaced by a newer one leaves presence to its successor.
		if hub.Unregister(code, cl) {
			d.Disconnect(code, id.ID)
		}
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
	}
}

// originPatterns turns CORS origins ("https://app.example") into the host
// patterns websocket.Accept matches against.
func originPatterns(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+len("://"):]
		}
		hosts = append(hosts, strings.TrimSuffix(o, "/"))
	}
	return hosts
}

// readPump reads client packets until the socket closes. It returns nil on a
// normal close.
func readPump(ctx context.Context, c *websocket.Conn, d *dispatch.Dispatcher, cl *client, code string, logger *logrus.Logger) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			logger.Warnf("Room %s: non-text message from %v ignored", code, cl.playerID)
			continue
		}

		var p packet
		if err := json.Unmarshal(msg, &p); err != nil {
			cl.writeError("invalid JSON format")
			continue
		}

		if p.Type == "leave_room" {
			if err := d.LeaveRoom(code, cl.playerID); err != nil {
				cl.writeError(err.Error())
				continue
			}
			return nil
		}

		a := game.Action{Kind: game.ActionKind(p.Type), Seq: p.Seq, Rules: p.Rules}
		if len(p.Cards) > 0 {
			cards, err := deck.ParseCards(p.Cards)
			if err != nil {
				cl.writeError(err.Error())
				continue
			}
			a.Cards = cards
		}

		// Rejections reach the actor through the hub as action_rejected.
		delta, aerr := d.HandleAction(code, cl.playerID, a)
		if aerr != nil {
			continue
		}
		cl.writeJSON(map[string]interface{}{
			"type":      "action_ack",
			"action":    a.Kind,
			"seq":       delta.Seq,
			"duplicate": delta.Duplicate,
		})
	}
}

// writePump drains the client's queue onto the socket and keeps it alive with
// pings. A kick flushes what is already queued before closing.
func writePump(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, cl *client, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cancel()

	write := func(data []byte) bool {
		wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
		defer wcancel()
		if err := c.Write(wctx, websocket.MessageText, data); err != nil {
			logger.Warnf("Write to %v failed: %v", cl.playerID, err)
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-cl.out:
			if !write(data) {
				return
			}
		case <-cl.closing:
			for {
				select {
				case data := <-cl.out:
					if !write(data) {
						return
					}
				default:
					c.Close(websocket.StatusCode(cl.code), cl.reason)
					return
				}
			}
		case <-ticker.C:
			pctx, pcancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Ping(pctx)
			pcancel()
			if err != nil {
				logger.Warnf("Ping to %v failed: %v", cl.playerID, err)
				return
			}
		}
	}
}
