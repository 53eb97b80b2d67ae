package gateway

import "sync"

// rooms tracks socket-level subscriptions in both directions: all clients in
// a chat room for broadcasting, and all rooms of a client for disconnect
// cleanup. Every operation is atomic under one mutex.
type rooms struct {
	mu       sync.Mutex
	byChat   map[string]map[*client]struct{}
	byClient map[*client]map[string]struct{}
}

func newRooms() *rooms {
	return &rooms{
		byChat:   make(map[string]map[*client]struct{}),
		byClient: make(map[*client]map[string]struct{}),
	}
}

func (r *rooms) subscribe(c *client, chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byChat[chatID]; !ok {
		r.byChat[chatID] = make(map[*client]struct{})
	}
	r.byChat[chatID][c] = struct{}{}

	if _, ok := r.byClient[c]; !ok {
		r.byClient[c] = make(map[string]struct{})
	}
	r.byClient[c][chatID] = struct{}{}
}

func (r *rooms) unsubscribe(c *client, chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byChat[chatID], c)
	if len(r.byChat[chatID]) == 0 {
		delete(r.byChat, chatID)
	}
	delete(r.byClient[c], chatID)
}

// drop removes the client from every room it is subscribed to.
func (r *rooms) drop(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for chatID := range r.byClient[c] {
		delete(r.byChat[chatID], c)
		if len(r.byChat[chatID]) == 0 {
			delete(r.byChat, chatID)
		}
	}
	delete(r.byClient, c)
}

// clientsIn returns a snapshot of the room's subscribers.
func (r *rooms) clientsIn(chatID string) []*client {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := make([]*client, 0, len(r.byChat[chatID]))
	for c := range r.byChat[chatID] {
		subs = append(subs, c)
	}
	return subs
}
