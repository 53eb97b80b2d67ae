package gateway

import (
	"transcendence/internal/presence"
)

// Emitter is the live delivery surface shared by the dispatcher, the
// notification coordinator and the matchmaking service: room broadcast via
// socket subscriptions, targeted delivery via the connection registry.
type Emitter struct {
	rooms    *rooms
	registry *presence.Registry
}

func NewEmitter(registry *presence.Registry) *Emitter {
	return &Emitter{
		rooms:    newRooms(),
		registry: registry,
	}
}

func (e *Emitter) Broadcast(chatID, event string, payload any) {
	for _, c := range e.rooms.clientsIn(chatID) {
		c.Send(event, payload)
	}
}

func (e *Emitter) ToUser(userID int64, event string, payload any) {
	for _, conn := range e.registry.Lookup(userID) {
		conn.Send(event, payload)
	}
}
