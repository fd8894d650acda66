package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-results-service/internal/app"
)

func TestWebSocketRankingPush(t *testing.T) {
	mux, service := newTestMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/ranking"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Initial snapshot is empty: nothing has been scored yet.
	var msg rankingMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if msg.Type != "ranking" || len(msg.Payload) != 0 {
		t.Fatalf("expected empty initial ranking, got %+v", msg)
	}

	if _, err := service.SubmitResult(context.Background(), app.ResultSubmission{
		Name:            "Cy",
		Email:           "cy@example.com",
		Role:            "broker",
		Phone:           "11 98765-4321",
		ManagingCompany: "Acme Consortia",
		State:           "SP",
		City:            "Campinas",
		Score:           8,
		ElapsedSeconds:  90,
	}); err != nil {
		t.Fatalf("submit result: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if len(msg.Payload) != 1 || msg.Payload[0].Name != "Cy" || msg.Payload[0].Score != 8 {
		t.Fatalf("expected Cy update, got %+v", msg.Payload)
	}
}
