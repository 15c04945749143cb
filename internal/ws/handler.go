package ws

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/websocket"
)

const (
	ChannelDirectory = "directory"
	viewPrefix       = "view:"
)

// ViewChannel is the channel a view's snapshots are published on.
func ViewChannel(name string) string {
	return viewPrefix + name
}

type Handler struct {
	hub   *Hub
	known func(view string) bool
}

// NewHandler serves the live feed. known reports whether a view name can be
// subscribed to.
func NewHandler(hub *Hub, known func(view string) bool) *Handler {
	return &Handler{hub: hub, known: known}
}

type subscribeMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	websocket.Handler(func(conn *websocket.Conn) {
		client := NewClient(conn)
		go h.writer(client)
		h.reader(client)
	}).ServeHTTP(c.Writer, c.Request)
}

func (h *Handler) reader(client *Client) {
	defer func() {
		h.hub.UnsubscribeAll(client)
		close(client.out)
		_ = client.conn.Close()
	}()

	for {
		var raw string
		if err := websocket.Message.Receive(client.conn, &raw); err != nil {
			return
		}
		var msg subscribeMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			client.send(errorFrame("invalid_message"))
			continue
		}
		if strings.ToLower(strings.TrimSpace(msg.Action)) != "subscribe" {
			continue
		}
		topic := h.subscriptionTopic(msg)
		if topic == "" {
			client.send(errorFrame("unknown_channel"))
			continue
		}
		last := h.hub.Subscribe(topic, client)
		ack, _ := json.Marshal(map[string]any{"event": "subscribed", "channel": topic})
		client.send(ack)
		if last != nil {
			client.send(last)
		}
	}
}

func (h *Handler) writer(client *Client) {
	for payload := range client.out {
		if err := websocket.Message.Send(client.conn, string(payload)); err != nil {
			return
		}
	}
}

func (h *Handler) subscriptionTopic(msg subscribeMessage) string {
	channel := strings.ToLower(strings.TrimSpace(msg.Channel))
	switch {
	case channel == ChannelDirectory:
		return ChannelDirectory
	case strings.HasPrefix(channel, viewPrefix):
		name := strings.TrimPrefix(channel, viewPrefix)
		if name == "" || h.known == nil || !h.known(name) {
			return ""
		}
		return ViewChannel(name)
	default:
		return ""
	}
}

func errorFrame(code string) []byte {
	b, _ := json.Marshal(map[string]string{"event": "error", "error": code})
	return b
}
