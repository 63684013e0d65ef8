package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/elopez-dev/codebattle-backend/internal/hub"
	"github.com/elopez-dev/codebattle-backend/internal/room"
	"github.com/elopez-dev/codebattle-backend/internal/types"
)

// readTimeout is generous relative to the 30s heartbeat so a single
// delayed beat does not kill the connection.
const readTimeout = 90 * time.Second

const writeTimeout = 3 * time.Second

// Handler serves /ws?code=XXXXXX[&player=<id>][&name=<display name>].
// The player parameter carries a previously issued identity for
// rejoin-attempts; first-time guests are assigned one.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.GetRoom{Code: code, Reply: reply}
		rm := <-reply
		if rm == nil {
			http.Error(w, "invalid or expired room", http.StatusNotFound)
			return
		}

		playerID := r.URL.Query().Get("player")
		if playerID == "" {
			playerID = uuid.NewString()
		}
		name := r.URL.Query().Get("name")

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan types.ServerMessage, 32)
		attachErr := make(chan error, 1)
		if !send(rm, room.Attach{PlayerID: playerID, Name: name, Outbox: out, Reply: attachErr}) {
			return
		}
		if err := <-attachErr; err != nil {
			payload, _ := json.Marshal(types.ServerMessage{Type: "Error", Error: err.Error()})
			wctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
			_ = conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			return
		}
		defer send(rm, room.Detach{PlayerID: playerID, Outbox: out})

		// Writer: drains the room's outbox until the room closes it.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for msg := range out {
				payload, _ := json.Marshal(msg)
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
			conn.Close(websocket.StatusNormalClosure, "room closed")
		}()

		limiter := rate.NewLimiter(rate.Limit(10), 20)

		for {
			ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			if !limiter.Allow() {
				log.Warn("client over message rate limit",
					zap.String("room", code), zap.String("player", playerID))
				continue
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				payload, _ := json.Marshal(types.ServerMessage{Type: "Error", Error: "bad json"})
				_ = conn.Write(r.Context(), websocket.MessageText, payload)
				continue
			}

			if !send(rm, room.FromClient{PlayerID: playerID, Msg: cm}) {
				return
			}
		}
	}
}

// send refuses to block on a room whose worker has already exited.
func send(rm *room.Room, m room.Msg) bool {
	select {
	case rm.Inbox() <- m:
		return true
	case <-rm.Done():
		return false
	}
}
