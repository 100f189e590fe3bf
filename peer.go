package main

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// peerLink is one open channel to a follower, owned by the leader's
// session loop. Writes go through the buffered send channel so a slow
// peer never blocks the loop.
type peerLink struct {
	conn *websocket.Conn
	send chan Envelope
}

func newPeerLink(conn *websocket.Conn) *peerLink {
	return &peerLink{
		conn: conn,
		send: make(chan Envelope, 8),
	}
}

// readPump forwards inbound envelopes to the session until the connection
// drops, then unregisters the link. Malformed frames end the connection;
// the player record stays in the roster either way.
func (l *peerLink) readPump(s *Session) {
	defer func() {
		select {
		case s.unreg <- l:
		case <-s.done:
		}
		_ = l.conn.Close()
	}()

	for {
		var env Envelope
		if err := l.conn.ReadJSON(&env); err != nil {
			return
		}
		select {
		case s.inbound <- inboundEvent{link: l, env: env}:
		case <-s.done:
			return
		}
	}
}

func (l *peerLink) writePump() {
	defer l.conn.Close()

	for env := range l.send {
		if err := l.conn.WriteJSON(env); err != nil {
			return
		}
	}
}
