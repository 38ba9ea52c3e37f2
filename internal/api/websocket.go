package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/doomedramen/autopwn-sub005/pkg/debug"
)

const streamWriteWait = 10 * time.Second

var sessionUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamSession pushes the session snapshot over a websocket once per
// interval until the session disappears or the client goes away
// GET /api/sessions/{id}/ws
func (h *Handler) StreamSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.sessions.Query(id); err != nil {
		sendEngineError(w, r, err)
		return
	}

	conn, err := sessionUpgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Error("Failed to upgrade WebSocket connection: %v", err)
		return
	}

	// The read loop only exists to notice the client leaving
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	defer func() {
		conn.Close()
		<-gone
	}()

	debug.Debug("[%s] Streaming session %s to %s", requestID(r.Context()), id, r.RemoteAddr)

	ticker := time.NewTicker(h.streamInterval)
	defer ticker.Stop()

	for {
		session, err := h.sessions.Query(id)
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err != nil {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
			return
		}
		if err := conn.WriteJSON(session); err != nil {
			debug.Debug("Stream for session %s closed: %v", id, err)
			return
		}

		select {
		case <-gone:
			return
		case <-ticker.C:
		}
	}
}
