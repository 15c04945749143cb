package ws

import "sync"

// Hub fans payloads out per channel and remembers the last one, so a late
// subscriber starts from the current state.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Client]struct{}
	last        map[string][]byte
}

func NewHub() *Hub {
	return &Hub{
		subscribers: map[string]map[*Client]struct{}{},
		last:        map[string][]byte{},
	}
}

// Subscribe adds client to channel and returns the last payload published
// there, if any.
func (h *Hub) Subscribe(channel string, client *Client) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[channel]; !ok {
		h.subscribers[channel] = map[*Client]struct{}{}
	}
	h.subscribers[channel][client] = struct{}{}
	client.addChannel(channel)
	return h.last[channel]
}

func (h *Hub) UnsubscribeAll(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, channel := range client.listChannels() {
		if subs, ok := h.subscribers[channel]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.subscribers, channel)
			}
		}
	}
}

func (h *Hub) Publish(channel string, payload []byte) {
	h.mu.Lock()
	h.last[channel] = payload
	h.mu.Unlock()

	// Held for reading while sending so UnsubscribeAll cannot close a client
	// mid-publish. send never blocks.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subscribers[channel] {
		c.send(payload)
	}
}

// Subscribers counts the clients on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[channel])
}
