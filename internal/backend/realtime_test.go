package backend

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/planward/planward/internal/config"
)

// realtimeServer accepts one websocket connection and echoes a change event
// back for every join it sees.
func realtimeServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realtime/v1/websocket" {
			t.Errorf("path = %q, want /realtime/v1/websocket", r.URL.Path)
		}
		if k := r.URL.Query().Get("apikey"); k != "anon-key" {
			t.Errorf("apikey = %q", k)
		}
		if v := r.URL.Query().Get("vsn"); v != "1.0.0" {
			t.Errorf("vsn = %q", v)
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept failed: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg envelope
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Errorf("unreadable client message: %v", err)
				continue
			}
			switch msg.Event {
			case "phx_join":
				reply := envelope{Topic: msg.Topic, Event: "phx_reply", Payload: json.RawMessage(`{"status":"ok"}`), Ref: msg.Ref}
				writeEnvelope(ctx, t, conn, reply)

				change := envelope{
					Topic:   msg.Topic,
					Event:   "postgres_changes",
					Payload: json.RawMessage(`{"type":"INSERT","record":{"id":"t1","title":"pushed"}}`),
				}
				writeEnvelope(ctx, t, conn, change)
			case "phx_leave", "heartbeat":
				reply := envelope{Topic: msg.Topic, Event: "phx_reply", Payload: json.RawMessage(`{"status":"ok"}`), Ref: msg.Ref}
				writeEnvelope(ctx, t, conn, reply)
			}
		}
	}))
}

func writeEnvelope(ctx context.Context, t *testing.T, conn *websocket.Conn, msg envelope) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Errorf("failed to encode envelope: %v", err)
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Errorf("failed to write envelope: %v", err)
	}
}

func TestRealtimeJoinDeliversChanges(t *testing.T) {
	srv := realtimeServer(t)
	defer srv.Close()

	cfg := &config.Config{BackendURL: srv.URL, AnonKey: "anon-key"}
	c, err := New(cfg, log.New(os.Stderr, "[test] ", 0))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rc, err := c.DialRealtime(ctx)
	if err != nil {
		t.Fatalf("DialRealtime failed: %v", err)
	}
	defer rc.Close()

	events := make(chan ChangeEvent, 1)
	err = rc.Join(ctx, "tasks", "u1", func(ev ChangeEvent) {
		events <- ev
	})
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Table != "tasks" || ev.Type != ChangeInsert {
			t.Errorf("unexpected event: table=%s type=%s", ev.Table, ev.Type)
		}
		var record struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(ev.Payload, &record); err != nil || record.ID != "t1" {
			t.Errorf("payload not passed through raw: %s", ev.Payload)
		}
	case <-ctx.Done():
		t.Fatal("no change event delivered")
	}
}

func TestRealtimeLeaveStopsDelivery(t *testing.T) {
	srv := realtimeServer(t)
	defer srv.Close()

	cfg := &config.Config{BackendURL: srv.URL, AnonKey: "anon-key"}
	c, err := New(cfg, log.New(os.Stderr, "[test] ", 0))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rc, err := c.DialRealtime(ctx)
	if err != nil {
		t.Fatalf("DialRealtime failed: %v", err)
	}
	defer rc.Close()

	events := make(chan ChangeEvent, 2)
	if err := rc.Join(ctx, "tasks", "u1", func(ev ChangeEvent) { events <- ev }); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	<-events

	if err := rc.Leave(ctx, "tasks", "u1"); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	// Joining under a different identity proves the first handler is gone:
	// its topic no longer routes.
	redelivered := make(chan ChangeEvent, 1)
	if err := rc.Join(ctx, "tasks", "u2", func(ev ChangeEvent) { redelivered <- ev }); err != nil {
		t.Fatalf("second Join failed: %v", err)
	}
	<-redelivered

	select {
	case ev := <-events:
		t.Errorf("left channel still delivered %+v", ev)
	default:
	}
}
