package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-results-service/internal/app"
	"quiz-results-service/internal/domain"
)

// WSHandler streams live leaderboard updates to websocket clients.
type WSHandler struct {
	service  *app.ParticipantService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ParticipantService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type rankingMessage struct {
	Type    string                `json:"type"`
	Payload []domain.RankingEntry `json:"payload"`
}

// ServeWS upgrades the connection, sends the current leaderboard, then
// pushes every update until the client disconnects. The push is one-way;
// writes go through the REST surface.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	updates, cancel, err := h.service.SubscribeRanking(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	defer cancel()

	done := make(chan struct{})

	// Reader exists only to observe the close handshake.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case entries, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(rankingMessage{Type: "ranking", Payload: entries}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}
