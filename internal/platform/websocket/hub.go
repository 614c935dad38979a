// Package websocket pushes live workflow events (queue boards, visit status,
// bed census) to subscribed browser clients.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// QueueTopic carries queue changes for one department.
func QueueTopic(department string) string { return "queue:" + department }

// VisitTopic carries status changes for one visit.
func VisitTopic(visitID string) string { return "visit:" + visitID }

// WardTopic carries bed status changes for one ward.
func WardTopic(wardID string) string { return "ward:" + wardID }

type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	EntityID  string          `json:"entity_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an event with data marshalled to JSON.
func NewEvent(typ, topic, entityID string, data interface{}) (Event, error) {
	ev := Event{Type: typ, Topic: topic, EntityID: entityID, Timestamp: time.Now().UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return ev, err
		}
		ev.Data = raw
	}
	return ev, nil
}

// ClientMessage is what a browser sends to change its subscriptions.
type ClientMessage struct {
	Action string   `json:"action"` // subscribe | unsubscribe
	Topics []string `json:"topics"`
}

type Client struct {
	ID     string
	Send   chan []byte
	topics map[string]struct{}
}

func NewClient(buffer int) *Client {
	return &Client{ID: uuid.NewString(), Send: make(chan []byte, buffer), topics: make(map[string]struct{})}
}

// Hub fans events out to clients by topic. Slow clients whose buffer is full
// miss events rather than stalling publishers.
type Hub struct {
	logger zerolog.Logger

	mu      sync.RWMutex
	byTopic map[string]map[*Client]struct{}
	clients map[*Client]struct{}
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		byTopic: make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
	}
}

func (h *Hub) Register(c *Client, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.subscribe(c, topics)
}

// Unregister drops every subscription of c and closes its Send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.unsubscribe(c, c.topicList())
	delete(h.clients, c)
	close(c.Send)
}

func (h *Hub) Subscribe(c *Client, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribe(c, topics)
}

func (h *Hub) Unsubscribe(c *Client, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribe(c, topics)
}

func (h *Hub) subscribe(c *Client, topics []string) {
	for _, t := range topics {
		if t == "" {
			continue
		}
		if h.byTopic[t] == nil {
			h.byTopic[t] = make(map[*Client]struct{})
		}
		h.byTopic[t][c] = struct{}{}
		c.topics[t] = struct{}{}
	}
}

func (h *Hub) unsubscribe(c *Client, topics []string) {
	for _, t := range topics {
		if subs, ok := h.byTopic[t]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.byTopic, t)
			}
		}
		delete(c.topics, t)
	}
}

func (c *Client) topicList() []string {
	out := make([]string, 0, len(c.topics))
	for t := range c.topics {
		out = append(out, t)
	}
	return out
}

// Handle applies a client subscription message.
func (h *Hub) Handle(c *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(c, msg.Topics...)
	case "unsubscribe":
		h.Unsubscribe(c, msg.Topics...)
	}
}

// Publish delivers ev to subscribers of ev.Topic.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.byTopic[ev.Topic] {
		select {
		case c.Send <- data:
		default:
			h.logger.Warn().Str("client_id", c.ID).Str("topic", ev.Topic).Msg("websocket client buffer full, event dropped")
		}
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byTopic[topic])
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS configuration in front of the API.
	CheckOrigin: func(*http.Request) bool { return true },
}

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

func (h *Handler) RegisterRoutes(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	e.GET("/ws", h.Connect, mw...)
}

// Connect upgrades the request. Initial topics may be passed as a comma
// separated ?topics= query parameter.
func (h *Handler) Connect(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(256)
	var topics []string
	if q := c.QueryParam("topics"); q != "" {
		topics = strings.Split(q, ",")
	}
	h.hub.Register(client, topics...)

	go h.writePump(client, ws)
	go h.readPump(client, ws)
	return nil
}

func (h *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
	}()
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}
		h.hub.Handle(client, msg)
	}
}

func (h *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	defer ws.Close()
	for msg := range client.Send {
		if err := ws.WriteMessage(gorillawebsocket.TextMessage, msg); err != nil {
			return
		}
	}
}
