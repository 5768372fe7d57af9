package router

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dipeoflow/engine/pkg/scheduler"
)

// Grounded on the go/-tree websocket_observer.go's ping/pong keepalive
// constants.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WireMessage is the JSON envelope sent to WebSocket clients, grounded on
// the teacher's WebSocketMessage/EventPayload shape.
type WireMessage struct {
	Type      string    `json:"type"`
	Event     *WireEvent `json:"event,omitempty"`
	Control   *ControlMessage `json:"control,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WireEvent is the flattened, JSON-friendly form of a scheduler.Event.
type WireEvent struct {
	Type        string `json:"type"`
	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id,omitempty"`
	NodeType    string `json:"node_type,omitempty"`
	Status      string `json:"status,omitempty"`
	Error       string `json:"error,omitempty"`
	Output      any    `json:"output,omitempty"`
	DurationMs  int64  `json:"duration_ms,omitempty"`
}

// ControlMessage carries a client's subscribe/unsubscribe command, the
// inbound counterpart of scheduler.Control for the WebSocket transport.
type ControlMessage struct {
	Command string   `json:"command"` // "subscribe" | "unsubscribe"
	Types   []string `json:"types,omitempty"`
}

func toWireEvent(e scheduler.Event) WireEvent {
	return WireEvent{
		Type:        string(e.Type),
		ExecutionID: e.ExecutionID,
		NodeID:      string(e.NodeID),
		NodeType:    string(e.NodeType),
		Status:      e.Status,
		Error:       e.Error,
		Output:      e.Output,
		DurationMs:  e.DurationMs,
	}
}

// Client wraps one WebSocket connection's read/write pumps, grounded on the
// teacher's WebSocketClient.
type Client struct {
	conn *websocket.Conn
	sub  *Subscriber
	hub  *Hub
	log  *slog.Logger
}

// NewClient upgrades an HTTP request to a WebSocket connection and
// registers a new Subscriber on hub for it, filtered to executionID.
func NewClient(hub *Hub, w http.ResponseWriter, r *http.Request, executionID string, log *slog.Logger) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	sub := hub.Subscribe(executionID+":"+conn.RemoteAddr().String(), ExecutionIDFilter{ExecutionID: executionID})
	return &Client{conn: conn, sub: sub, hub: hub, log: log}, nil
}

// Run starts the client's write pump (blocking) and a background read pump
// for control messages, matching the teacher's ReadPump/WritePump split.
// Run returns once the connection closes.
func (c *Client) Run() {
	go c.readPump()
	c.writePump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unsubscribe(c.sub.ID)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ControlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("router: discarding malformed control message", "error", err)
			continue
		}
		// Subscribe/unsubscribe-to-types refinement is left to a future
		// per-client type filter; today every client receives every event
		// type for its execution once connected.
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case e, ok := <-c.sub.Events():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			wire := WireMessage{Type: "event", Event: ptrWireEvent(toWireEvent(e)), Timestamp: time.Now()}
			b, err := json.Marshal(wire)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func ptrWireEvent(e WireEvent) *WireEvent { return &e }
