package ws

import (
	"AgentDesk/entity"
	"AgentDesk/internal/lib/metrics"
	"AgentDesk/internal/lib/sl"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

const (
	EventNewMessage    = "new_message"
	EventLockChanged   = "lock_changed"
	EventReadReceipt   = "read_receipt"
	EventMessageStatus = "message_status"
)

// ClientMessageHandler handles incoming WebSocket messages from console clients.
type ClientMessageHandler interface {
	MarkRead(ctx context.Context, op *entity.Operator, req *entity.MarkReadRequest) (*entity.ReadReceipt, error)
}

// Event is one push to console clients. ClientID scopes delivery to the
// operators of that tenant and admins.
type Event struct {
	Type     string      `json:"type"`
	Data     interface{} `json:"data"`
	clientID string
}

// MessageEvent announces a message stored into a conversation.
type MessageEvent struct {
	AgentID        string         `json:"agent_id"`
	AgentName      string         `json:"agent_name"`
	ConversationID string         `json:"conversation_id"`
	UserID         string         `json:"user_id"`
	PhoneNumberID  string         `json:"phone_number_id"`
	Message        entity.Message `json:"message"`
}

type StatusEvent struct {
	MessageID   string               `json:"message_id"`
	RecipientID string               `json:"recipient_id"`
	Status      entity.MessageStatus `json:"status"`
}

// Hub maintains the set of active WebSocket clients and broadcasts events.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	handler    ClientMessageHandler
	log        *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log.With(sl.Module("ws")),
	}
}

func (h *Hub) SetHandler(handler ClientMessageHandler) {
	h.handler = handler
}

// Run is the hub's event loop; it returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			metrics.WebsocketClients.Set(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			metrics.WebsocketClients.Set(float64(len(h.clients)))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			metrics.WebsocketClients.Set(float64(len(h.clients)))
			h.mu.Unlock()

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.log.Warn("marshal event", slog.String("type", event.Type), sl.Err(err))
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				if !client.operator.CanAccess(event.clientID) {
					continue
				}
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount is the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// publish never blocks the caller; a full queue drops the event.
func (h *Hub) publish(clientID, eventType string, data interface{}) {
	select {
	case h.broadcast <- &Event{Type: eventType, Data: data, clientID: clientID}:
	default:
		h.log.Warn("broadcast queue full, event dropped", slog.String("type", eventType))
	}
}

func (h *Hub) BroadcastMessage(clientID string, event MessageEvent) {
	h.publish(clientID, EventNewMessage, event)
}

func (h *Hub) BroadcastLock(clientID string, lock entity.HandoffLock) {
	h.publish(clientID, EventLockChanged, lock)
}

func (h *Hub) BroadcastReadReceipt(clientID string, receipt entity.ReadReceipt) {
	h.publish(clientID, EventReadReceipt, receipt)
}

func (h *Hub) BroadcastStatus(clientID string, status StatusEvent) {
	h.publish(clientID, EventMessageStatus, status)
}

// clientEvent represents an incoming WebSocket message from a console client.
type clientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleClientMessage parses and dispatches an incoming message from a client.
func (h *Hub) HandleClientMessage(ctx context.Context, op *entity.Operator, raw []byte) {
	if h.handler == nil {
		return
	}

	var event clientEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		h.log.Warn("failed to parse client ws message", sl.Err(err))
		return
	}

	switch event.Type {
	case "mark_read":
		var req entity.MarkReadRequest
		if err := json.Unmarshal(event.Data, &req); err != nil {
			h.log.Warn("failed to parse mark_read data", sl.Err(err))
			return
		}
		if req.ReadBy == "" {
			req.ReadBy = op.Username
		}
		if err := req.Bind(nil); err != nil {
			h.log.Warn("invalid mark_read data", sl.Err(err))
			return
		}
		if _, err := h.handler.MarkRead(ctx, op, &req); err != nil {
			h.log.Error("failed to handle mark_read",
				slog.String("username", op.Username),
				slog.String("agent_id", req.AgentID),
				slog.String("user_id", req.UserID),
				sl.Err(err),
			)
		}
	default:
		h.log.Debug("unknown client event", slog.String("type", event.Type))
	}
}
