package companion

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/calmloop/calmloop/backend/pkg/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStream pushes state snapshots to the client over a websocket for
// the lifetime of the connection.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	store := h.store(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[companion] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	subID, updates := store.Subscribe()
	defer store.Unsubscribe(subID)

	// Reader pump: the client sends nothing meaningful, but reading is
	// how we learn the connection closed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(store.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case state, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(state); err != nil {
				return
			}
		}
	}
}

// handleEvents is the SSE twin of handleStream for clients without
// websocket support.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	store := h.store(r)
	subID, updates := store.Subscribe()
	defer store.Unsubscribe(subID)

	utils.SetupSSEHeaders(w)
	utils.SendSSEEvent(w, flusher, "state", store.Snapshot())

	for {
		select {
		case <-r.Context().Done():
			return
		case state, ok := <-updates:
			if !ok {
				return
			}
			utils.SendSSEEvent(w, flusher, "state", state)
		}
	}
}
