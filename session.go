package main

import (
	"sync"
)

type inboundEvent struct {
	link *peerLink
	env  Envelope
}

type intentReq struct {
	fn  func(GameState) GameState
	ack chan struct{}
}

// Session owns the authoritative GameState for a leader or a pass-and-play
// device. A single run goroutine serializes every mutation: local intents,
// inbound peer events, and connection bookkeeping all pass through its
// channels, so there is never a race between concurrent JOINs or between a
// JOIN and a round transition.
//
// In online mode every applied mutation is followed by a full-snapshot
// broadcast to all open links. In local mode there are no links and the
// loop only feeds subscribers.
type Session struct {
	cfg     *Config
	localID string

	// Owned by the run goroutine.
	state GameState
	links map[*peerLink]bool

	register chan *peerLink
	unreg    chan *peerLink
	inbound  chan inboundEvent
	intents  chan intentReq

	done      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	last GameState
	subs map[chan GameState]struct{}
}

// newLobbySession creates an online lobby with this process as leader.
func newLobbySession(cfg *Config, nickname string) *Session {
	leader := newPlayer(nickname, true)
	code := newLobbyCode()
	s := newSession(cfg, newGameState(ModeOnline, code, leader), leader.ID)
	logf(cfg, "LOBBY: Created lobby %s as %q", code, nickname)
	return s
}

// newLocalSession creates a pass-and-play session. The creating player is
// nominally the leader; with a single shared device all controls are local
// anyway.
func newLocalSession(cfg *Config, nickname string) *Session {
	leader := newPlayer(nickname, true)
	s := newSession(cfg, newGameState(ModeLocal, "", leader), leader.ID)
	logf(cfg, "LOBBY: Created pass-and-play session as %q", nickname)
	return s
}

func newSession(cfg *Config, state GameState, localID string) *Session {
	s := &Session{
		cfg:      cfg,
		localID:  localID,
		state:    state,
		links:    make(map[*peerLink]bool),
		register: make(chan *peerLink),
		unreg:    make(chan *peerLink),
		inbound:  make(chan inboundEvent),
		intents:  make(chan intentReq),
		done:     make(chan struct{}),
		last:     state.Clone(),
		subs:     make(map[chan GameState]struct{}),
	}
	go s.run()
	return s
}

func (s *Session) run() {
	for {
		select {
		case l := <-s.register:
			s.links[l] = true

		case l := <-s.unreg:
			// Channel-closed cleanup only. The player record stays in
			// the roster; there is no reconnect path.
			if s.links[l] {
				delete(s.links, l)
				close(l.send)
			}

		case ev := <-s.inbound:
			s.handleEvent(ev)

		case req := <-s.intents:
			s.apply(req.fn)
			close(req.ack)

		case <-s.done:
			for l := range s.links {
				delete(s.links, l)
				close(l.send)
				_ = l.conn.Close()
			}
			return
		}
	}
}

// apply runs one transition and, in online mode, pushes the entire new
// state to every open link. Followers never see diffs.
func (s *Session) apply(fn func(GameState) GameState) {
	s.state = fn(s.state)

	if s.state.GameMode == ModeOnline && len(s.links) > 0 {
		env := stateEvent(s.state)
		for l := range s.links {
			select {
			case l.send <- env:
			default:
				delete(s.links, l)
				close(l.send)
			}
		}
	}

	s.publish(s.state)
}

func (s *Session) handleEvent(ev inboundEvent) {
	switch ev.env.Type {
	case EventJoin:
		p, err := ev.env.player()
		if err != nil || p.ID == "" {
			return
		}
		// Leader identity is fixed at lobby creation; a joiner can
		// never claim it.
		p.IsLeader = false
		p.Role = ""
		p.Word = ""
		s.apply(func(st GameState) GameState {
			return joinPlayer(st, p)
		})
		logf(s.cfg, "LOBBY: Player %q joined %s", p.Nickname, s.state.LobbyCode)

	case EventSyncRequest:
		// The link may already have been evicted for congestion while
		// its connection was still readable; its send channel is closed
		// then, and a send would panic the loop.
		if !s.links[ev.link] {
			return
		}
		// Resend of the authoritative snapshot to the asking channel
		// only; cannot diverge any mirror.
		select {
		case ev.link.send <- stateEvent(s.state):
		default:
		}

	default:
		// Unknown types are ignored for forward compatibility.
		logf(s.cfg, "LOBBY: Ignoring %q event in %s", ev.env.Type, s.state.LobbyCode)
	}
}

func (s *Session) publish(st GameState) {
	s.mu.Lock()
	s.last = st.Clone()
	for ch := range s.subs {
		select {
		case ch <- st.Clone():
		default:
			// Drop if the subscriber is lagging; the next snapshot
			// supersedes this one anyway.
		}
	}
	s.mu.Unlock()
}

// Snapshot returns a copy of the most recently applied state.
func (s *Session) Snapshot() GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.Clone()
}

// Subscribe registers for state snapshots. A lagging subscriber may miss
// intermediate snapshots; each delivered snapshot is complete on its own.
func (s *Session) Subscribe() chan GameState {
	ch := make(chan GameState, 16)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Session) Unsubscribe(ch chan GameState) {
	s.mu.Lock()
	if _, ok := s.subs[ch]; ok {
		delete(s.subs, ch)
		close(ch)
	}
	s.mu.Unlock()
}

// Close stops the run loop and drops every open link.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// mutate queues one transition on the session loop and waits for it to be
// applied, so a Snapshot taken right after reflects the intent.
func (s *Session) mutate(fn func(GameState) GameState) {
	req := intentReq{fn: fn, ack: make(chan struct{})}
	select {
	case s.intents <- req:
		<-req.ack
	case <-s.done:
	}
}

// LocalID is the player id of the device owner.
func (s *Session) LocalID() string { return s.localID }

// Code is the human-shareable lobby code, empty in local mode.
func (s *Session) Code() string { return s.Snapshot().LobbyCode }

// UI intents. Each runs as one atomic read-modify-broadcast step on the
// session loop.

func (s *Session) StartRound(pair WordPair) {
	s.mutate(func(st GameState) GameState { return startRound(st, pair) })
}

func (s *Session) NextDistribution() {
	s.mutate(advanceDistribution)
}

func (s *Session) EndRound() {
	s.mutate(endRound)
}

func (s *Session) ReturnToLobby() {
	s.mutate(returnToLobby)
}

func (s *Session) UpdateSettings(settings GameSettings) {
	s.mutate(func(st GameState) GameState { return updateSettings(st, settings) })
}

func (s *Session) AddPlayer(nickname string) {
	s.mutate(func(st GameState) GameState { return addPlayer(st, nickname) })
}

func (s *Session) RemovePlayer(id string) {
	s.mutate(func(st GameState) GameState { return removePlayer(st, id) })
}

func (s *Session) ReorderPlayers(from, to int) {
	s.mutate(func(st GameState) GameState { return reorderPlayers(st, from, to) })
}
