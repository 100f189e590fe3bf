package main

import (
	"encoding/json"
)

// EventType discriminates the peer-to-peer wire envelope.
type EventType string

const (
	// Follower → leader: announce a new player. Idempotent by player id.
	EventJoin EventType = "JOIN"
	// Leader → follower: full authoritative snapshot, replaces the
	// follower's state wholesale.
	EventUpdateState EventType = "UPDATE_STATE"
	// Follower → leader: ask for a fresh snapshot (late-join resync).
	EventSyncRequest EventType = "SYNC_REQUEST"
	// Reserved. Declared for forward compatibility, never sent.
	EventKick EventType = "KICK"
)

// Envelope is the one JSON message shape on the wire. Unknown types must
// be ignored by receivers, never treated as fatal.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type syncRequestPayload struct {
	FromID string `json:"fromId"`
}

type kickPayload struct {
	ID string `json:"id"`
}

func newEnvelope(t EventType, payload any) Envelope {
	raw, err := json.Marshal(payload)
	if err != nil {
		// All payload types are plain JSON-serializable structs.
		panic("protocol: marshal " + string(t) + ": " + err.Error())
	}
	return Envelope{Type: t, Payload: raw}
}

func joinEvent(p Player) Envelope {
	return newEnvelope(EventJoin, p)
}

func stateEvent(s GameState) Envelope {
	return newEnvelope(EventUpdateState, s)
}

func syncRequestEvent(fromID string) Envelope {
	return newEnvelope(EventSyncRequest, syncRequestPayload{FromID: fromID})
}

func (e Envelope) player() (Player, error) {
	var p Player
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}

func (e Envelope) state() (GameState, error) {
	var s GameState
	err := json.Unmarshal(e.Payload, &s)
	return s, err
}
