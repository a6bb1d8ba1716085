package progress

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/collector"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/logging"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/normalize"
)

func dial(t *testing.T, hub *Hub) (*websocket.Conn, func()) {
	t.Helper()
	server := httptest.NewServer(hub)
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		server.Close()
		t.Fatalf("Dial failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("Invalid event JSON %s: %v", data, err)
	}
	return e
}

func TestHub_StreamsResults(t *testing.T) {
	hub := NewHub(logging.Discard())
	conn, cleanup := dial(t, hub)
	defer cleanup()

	hub.Observe(collector.Result{ID: 1, Outcome: collector.OutcomeOK, Record: normalize.Record{ID: 1, Name: "bulbasaur"}})
	hub.Observe(collector.Result{ID: 2, Outcome: collector.OutcomeFetchFailed, Err: errors.New("timeout")})
	hub.Finish(collector.Summary{Requested: 2, Collected: 1, FetchFailed: 1})

	first := readEvent(t, conn)
	if first.Type != EventResult || first.ID != 1 || first.Outcome != "ok" || first.Name != "bulbasaur" {
		t.Errorf("Unexpected first event: %+v", first)
	}

	second := readEvent(t, conn)
	if second.Outcome != "fetch_failed" || second.Error != "timeout" || second.Name != "" {
		t.Errorf("Unexpected second event: %+v", second)
	}

	summary := readEvent(t, conn)
	if summary.Type != EventSummary || summary.Summary == nil || summary.Summary.Collected != 1 {
		t.Errorf("Unexpected summary event: %+v", summary)
	}
}

func TestHub_RemovesClosedClients(t *testing.T) {
	hub := NewHub(logging.Discard())
	conn, cleanup := dial(t, hub)
	defer cleanup()

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Closed client was not removed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// publishing with nobody listening is a no-op
	hub.Publish(Event{Type: EventResult, ID: 3})
}

func TestHub_CloseDisconnects(t *testing.T) {
	hub := NewHub(logging.Discard())
	conn, cleanup := dial(t, hub)
	defer cleanup()

	hub.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("Expected normal close, got %v", err)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("Expected no clients after Close, got %d", hub.ClientCount())
	}
}
