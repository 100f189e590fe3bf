package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Follower mirrors the leader's GameState over a single dialed channel.
// Its only legitimate local mutation is replacing the whole state with an
// UPDATE_STATE snapshot; UI actions that would change shared state are not
// available on a follower.
type Follower struct {
	cfg  *Config
	conn *websocket.Conn
	self Player

	mu     sync.Mutex
	state  GameState
	subs   map[chan GameState]struct{}
	closed bool

	closeOnce sync.Once
}

// JoinLobby dials the leader addressed by the lobby code, announces the
// local player with a JOIN, and starts mirroring. An unreachable host or a
// wrong code surfaces as an error here; there is no automatic retry.
func JoinLobby(ctx context.Context, cfg *Config, server, code, nickname string) (*Follower, error) {
	code = normalizeCode(code)
	wsURL, err := lobbySocketURL(server, code)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("could not connect to lobby %s: %w", code, err)
	}

	self := newPlayer(nickname, false)

	f := &Follower{
		cfg:  cfg,
		conn: conn,
		self: self,
		state: GameState{
			LobbyCode:         code,
			Status:            StatusLobby,
			GameMode:          ModeOnline,
			Settings:          defaultSettings(),
			DistributionIndex: -1,
		},
		subs: make(map[chan GameState]struct{}),
	}

	if err := conn.WriteJSON(joinEvent(self)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("could not join lobby %s: %w", code, err)
	}

	logf(cfg, "LOBBY: Joined %s as %q", code, nickname)

	go f.readLoop()
	return f, nil
}

func (f *Follower) readLoop() {
	defer func() {
		_ = f.conn.Close()
		f.mu.Lock()
		f.closed = true
		for ch := range f.subs {
			delete(f.subs, ch)
			close(ch)
		}
		f.mu.Unlock()
	}()

	for {
		var env Envelope
		if err := f.conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Type != EventUpdateState {
			continue
		}
		st, err := env.state()
		if err != nil {
			continue
		}
		f.replace(st)
	}
}

// replace swaps the entire mirrored state, unconditionally. No merging.
func (f *Follower) replace(st GameState) {
	f.mu.Lock()
	f.state = st
	for ch := range f.subs {
		select {
		case ch <- st.Clone():
		default:
		}
	}
	f.mu.Unlock()
}

// Snapshot returns a copy of the mirrored state.
func (f *Follower) Snapshot() GameState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Clone()
}

// Subscribe registers for snapshots. The channel is closed when the
// connection to the leader drops.
func (f *Follower) Subscribe() chan GameState {
	ch := make(chan GameState, 16)
	f.mu.Lock()
	if f.closed {
		close(ch)
	} else {
		f.subs[ch] = struct{}{}
	}
	f.mu.Unlock()
	return ch
}

// RequestSync asks the leader for a fresh snapshot.
func (f *Follower) RequestSync() error {
	return f.conn.WriteJSON(syncRequestEvent(f.self.ID))
}

// LocalID is the id of the player this follower joined as.
func (f *Follower) LocalID() string { return f.self.ID }

// Close drops the connection; readLoop notices and closes every
// subscriber channel.
func (f *Follower) Close() {
	f.closeOnce.Do(func() {
		_ = f.conn.Close()
	})
}

// lobbySocketURL derives the leader's websocket endpoint from the server
// base URL and the lobby code via the public peer identifier.
func lobbySocketURL(server, code string) (string, error) {
	if server == "" {
		return "", fmt.Errorf("no server address given (use --server)")
	}
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server address %q: %w", server, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/peers/" + lobbyPeerID(code)
	u.RawQuery = ""
	return u.String(), nil
}
