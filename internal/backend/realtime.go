package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// The realtime API is a websocket multiplexing channel joins over one
// connection. Messages use the envelope {topic, event, payload, ref}.
// Joining topic "realtime:public:<table>:user_id=eq.<id>" subscribes to
// postgres change events (INSERT/UPDATE/DELETE) for that identity's rows.
// A heartbeat must be sent periodically or the server drops the socket.

const (
	heartbeatInterval = 30 * time.Second
	realtimeVersion   = "1.0.0"
)

// ChangeType is the kind of row change delivered on a channel.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent is a row change pushed by the backend. The payload is kept
// raw: consumers here never patch state from it, they refresh instead.
type ChangeEvent struct {
	Table   string
	Type    ChangeType
	Payload json.RawMessage
}

// envelope is the wire format for realtime messages in both directions.
type envelope struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

// changePayload is the payload of a postgres change event.
type changePayload struct {
	Type   ChangeType      `json:"type"`
	Record json.RawMessage `json:"record"`
}

// RealtimeConn is one websocket connection with any number of channel
// subscriptions. Close tears down every subscription.
type RealtimeConn struct {
	conn   *websocket.Conn
	logger *log.Logger

	mu       sync.Mutex
	handlers map[string]func(ChangeEvent) // topic -> handler
	tables   map[string]string            // topic -> table

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// DialRealtime opens the realtime websocket.
func (c *Client) DialRealtime(ctx context.Context) (*RealtimeConn, error) {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/realtime/v1/websocket"
	q := url.Values{}
	q.Set("apikey", c.anonKey)
	q.Set("vsn", realtimeVersion)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial realtime endpoint: %w", err)
	}

	rtCtx, cancel := context.WithCancel(context.Background())
	rc := &RealtimeConn{
		conn:     conn,
		logger:   c.logger,
		handlers: make(map[string]func(ChangeEvent)),
		tables:   make(map[string]string),
		ctx:      rtCtx,
		cancel:   cancel,
	}

	rc.wg.Add(2)
	go rc.readLoop()
	go rc.heartbeatLoop()
	return rc, nil
}

// Join subscribes to change events for one table filtered to an identity.
// The handler runs on the connection's read goroutine and must not block.
func (rc *RealtimeConn) Join(ctx context.Context, table, userID string, handler func(ChangeEvent)) error {
	topic := fmt.Sprintf("realtime:public:%s:user_id=eq.%s", table, userID)

	rc.mu.Lock()
	rc.handlers[topic] = handler
	rc.tables[topic] = table
	rc.mu.Unlock()

	if err := rc.send(ctx, envelope{
		Topic:   topic,
		Event:   "phx_join",
		Payload: json.RawMessage(`{}`),
		Ref:     uuid.NewString(),
	}); err != nil {
		rc.mu.Lock()
		delete(rc.handlers, topic)
		delete(rc.tables, topic)
		rc.mu.Unlock()
		return fmt.Errorf("failed to join %s: %w", topic, err)
	}
	return nil
}

// Leave unsubscribes from one table's channel.
func (rc *RealtimeConn) Leave(ctx context.Context, table, userID string) error {
	topic := fmt.Sprintf("realtime:public:%s:user_id=eq.%s", table, userID)

	rc.mu.Lock()
	delete(rc.handlers, topic)
	delete(rc.tables, topic)
	rc.mu.Unlock()

	if err := rc.send(ctx, envelope{
		Topic:   topic,
		Event:   "phx_leave",
		Payload: json.RawMessage(`{}`),
		Ref:     uuid.NewString(),
	}); err != nil {
		return fmt.Errorf("failed to leave %s: %w", topic, err)
	}
	return nil
}

// Close shuts down the connection and waits for the loops to exit.
func (rc *RealtimeConn) Close() error {
	rc.cancel()
	err := rc.conn.Close(websocket.StatusNormalClosure, "")
	rc.wg.Wait()
	return err
}

func (rc *RealtimeConn) send(ctx context.Context, msg envelope) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return rc.conn.Write(ctx, websocket.MessageText, data)
}

func (rc *RealtimeConn) readLoop() {
	defer rc.wg.Done()

	for {
		_, data, err := rc.conn.Read(rc.ctx)
		if err != nil {
			if rc.ctx.Err() == nil {
				rc.logger.Printf("realtime connection closed: %v", err)
			}
			return
		}

		var msg envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			rc.logger.Printf("WARNING: unreadable realtime message: %v", err)
			continue
		}

		switch msg.Event {
		case "phx_reply", "phx_close", "heartbeat":
			continue
		}

		var change changePayload
		if err := json.Unmarshal(msg.Payload, &change); err != nil || change.Type == "" {
			continue
		}

		rc.mu.Lock()
		handler := rc.handlers[msg.Topic]
		table := rc.tables[msg.Topic]
		rc.mu.Unlock()

		if handler != nil {
			handler(ChangeEvent{Table: table, Type: change.Type, Payload: change.Record})
		}
	}
}

func (rc *RealtimeConn) heartbeatLoop() {
	defer rc.wg.Done()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rc.ctx.Done():
			return
		case <-ticker.C:
			err := rc.send(rc.ctx, envelope{
				Topic:   "phoenix",
				Event:   "heartbeat",
				Payload: json.RawMessage(`{}`),
				Ref:     uuid.NewString(),
			})
			if err != nil && rc.ctx.Err() == nil {
				rc.logger.Printf("WARNING: heartbeat failed: %v", err)
			}
		}
	}
}
