package gateway

import (
	"encoding/json"
	"errors"
	"testing"

	"transcendence/infrastructure"
)

func TestRoomsSubscribeAndBroadcastSet(t *testing.T) {
	r := newRooms()
	a, b := &client{}, &client{}

	r.subscribe(a, "room-1")
	r.subscribe(b, "room-1")
	r.subscribe(a, "room-2")

	if got := len(r.clientsIn("room-1")); got != 2 {
		t.Fatalf("room-1 has %d clients, want 2", got)
	}
	if got := len(r.clientsIn("room-2")); got != 1 {
		t.Fatalf("room-2 has %d clients, want 1", got)
	}
	if got := len(r.clientsIn("missing")); got != 0 {
		t.Fatalf("unknown room has %d clients, want 0", got)
	}
}

func TestRoomsUnsubscribe(t *testing.T) {
	r := newRooms()
	a := &client{}

	r.subscribe(a, "room-1")
	r.unsubscribe(a, "room-1")
	r.unsubscribe(a, "room-1")

	if got := len(r.clientsIn("room-1")); got != 0 {
		t.Fatalf("room-1 has %d clients after unsubscribe, want 0", got)
	}
	if _, ok := r.byChat["room-1"]; ok {
		t.Error("empty room left behind")
	}
}

func TestRoomsDropClearsEveryRoom(t *testing.T) {
	r := newRooms()
	a, b := &client{}, &client{}

	r.subscribe(a, "room-1")
	r.subscribe(a, "room-2")
	r.subscribe(b, "room-1")

	r.drop(a)

	if got := len(r.clientsIn("room-1")); got != 1 {
		t.Fatalf("room-1 has %d clients, want only the remaining one", got)
	}
	if got := len(r.clientsIn("room-2")); got != 0 {
		t.Fatalf("room-2 has %d clients, want 0", got)
	}
	if _, ok := r.byClient[a]; ok {
		t.Error("dropped client still tracked")
	}
}

func TestDecodePayload(t *testing.T) {
	var got roomPayload
	err := decode(json.RawMessage(`{"chatId":"abc"}`), func(p roomPayload) error {
		got = p
		return nil
	})
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	if got.ChatID != "abc" {
		t.Errorf("chat id = %q, want %q", got.ChatID, "abc")
	}
}

func TestDecodeEmptyPayloadUsesZeroValue(t *testing.T) {
	called := false
	err := decode(nil, func(p roomPayload) error {
		called = true
		if p.ChatID != "" {
			t.Errorf("zero value expected, got %+v", p)
		}
		return nil
	})
	if err != nil || !called {
		t.Fatalf("decode(nil) err = %v, called = %v", err, called)
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	err := decode(json.RawMessage(`{oops`), func(p roomPayload) error {
		t.Fatal("handler ran on malformed input")
		return nil
	})
	if !errors.Is(err, infrastructure.ErrInvalidInput) {
		t.Fatalf("decode() error = %v, want ErrInvalidInput", err)
	}
}

func TestValidateChatPassword(t *testing.T) {
	if err := validateChatPassword("aA1!xyz9"); err != nil {
		t.Errorf("reasonable password rejected: %v", err)
	}
	if err := validateChatPassword("aaa"); !errors.Is(err, infrastructure.ErrInvalidInput) {
		t.Errorf("weak password error = %v, want ErrInvalidInput", err)
	}
}

func TestDurationOf(t *testing.T) {
	if durationOf(nil) != nil {
		t.Error("nil seconds should mean no duration")
	}
	secs := int64(90)
	d := durationOf(&secs)
	if d == nil || d.Seconds() != 90 {
		t.Errorf("durationOf(90) = %v, want 1m30s", d)
	}
}
