package main

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLobby(t *testing.T) (*Session, *httptest.Server) {
	t.Helper()

	cfg := &Config{}
	sess := newLobbySession(cfg, "Leader")
	t.Cleanup(sess.Close)

	srv := httptest.NewServer(newLobbyRouter(cfg, sess, make(chan error, 16)))
	t.Cleanup(srv.Close)

	return sess, srv
}

func dialLobby(t *testing.T, srv *httptest.Server, code string) *websocket.Conn {
	t.Helper()

	wsURL, err := lobbySocketURL(srv.URL, code)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func TestFollowerJoinAndMirror(t *testing.T) {
	sess, srv := newTestLobby(t)

	f, err := JoinLobby(context.Background(), &Config{}, srv.URL, sess.Code(), "Bob")
	require.NoError(t, err)
	defer f.Close()

	require.Eventually(t, func() bool {
		return len(sess.Snapshot().Players) == 2
	}, 2*time.Second, 10*time.Millisecond, "leader should append the joiner")

	require.Eventually(t, func() bool {
		st := f.Snapshot()
		return len(st.Players) == 2 && st.LobbyCode == sess.Code()
	}, 2*time.Second, 10*time.Millisecond, "follower should mirror the roster")

	st := sess.Snapshot()
	assert.Equal(t, "Leader", st.Players[0].Nickname)
	assert.True(t, st.Players[0].IsLeader)
	assert.Equal(t, "Bob", st.Players[1].Nickname)
	assert.False(t, st.Players[1].IsLeader)
}

func TestJoinIsIdempotentOverTheWire(t *testing.T) {
	sess, srv := newTestLobby(t)
	conn := dialLobby(t, srv, sess.Code())

	bob := newPlayer("Bob", false)
	require.NoError(t, conn.WriteJSON(joinEvent(bob)))
	require.NoError(t, conn.WriteJSON(joinEvent(bob)))

	carol := newPlayer("Carol", false)
	require.NoError(t, conn.WriteJSON(joinEvent(carol)))

	// Per-channel ordering means Carol is processed after both Bobs.
	require.Eventually(t, func() bool {
		return len(sess.Snapshot().Players) == 3
	}, 2*time.Second, 10*time.Millisecond)

	bobs := 0
	for _, p := range sess.Snapshot().Players {
		if p.ID == bob.ID {
			bobs++
		}
	}
	assert.Equal(t, 1, bobs, "duplicate JOIN must be a no-op")
}

func TestBroadcastReplacesFollowerStateWholesale(t *testing.T) {
	sess, srv := newTestLobby(t)

	f1, err := JoinLobby(context.Background(), &Config{}, srv.URL, sess.Code(), "Bob")
	require.NoError(t, err)
	defer f1.Close()

	f2, err := JoinLobby(context.Background(), &Config{}, srv.URL, sess.Code(), "Carol")
	require.NoError(t, err)
	defer f2.Close()

	require.Eventually(t, func() bool {
		return len(sess.Snapshot().Players) == 3
	}, 2*time.Second, 10*time.Millisecond)

	sess.mutate(func(st GameState) GameState {
		out := st.Clone()
		out.RoundCount = 5
		return out
	})

	for _, f := range []*Follower{f1, f2} {
		require.Eventually(t, func() bool {
			return f.Snapshot().RoundCount == 5
		}, 2*time.Second, 10*time.Millisecond,
			"every follower adopts the leader's snapshot regardless of prior state")
	}
}

func TestRoundBroadcastReachesFollowers(t *testing.T) {
	sess, srv := newTestLobby(t)

	f1, err := JoinLobby(context.Background(), &Config{}, srv.URL, sess.Code(), "Bob")
	require.NoError(t, err)
	defer f1.Close()

	f2, err := JoinLobby(context.Background(), &Config{}, srv.URL, sess.Code(), "Carol")
	require.NoError(t, err)
	defer f2.Close()

	require.Eventually(t, func() bool {
		return len(sess.Snapshot().Players) == 3
	}, 2*time.Second, 10*time.Millisecond)

	sess.StartRound(WordPair{Common: "Apple", Impostor: "Pear"})

	for _, f := range []*Follower{f1, f2} {
		require.Eventually(t, func() bool {
			return f.Snapshot().Status == StatusPlaying
		}, 2*time.Second, 10*time.Millisecond)

		st := f.Snapshot()
		me, ok := st.playerByID(f.LocalID())
		require.True(t, ok)
		assert.NotEmpty(t, me.Role)
	}

	sess.ReturnToLobby()

	for _, f := range []*Follower{f1, f2} {
		require.Eventually(t, func() bool {
			st := f.Snapshot()
			if st.Status != StatusLobby {
				return false
			}
			for _, p := range st.Players {
				if p.Role != "" || p.Word != "" {
					return false
				}
			}
			return true
		}, 2*time.Second, 10*time.Millisecond, "lobby reset must clear roles and words everywhere")
	}
}

func TestSyncRequestReturnsSnapshot(t *testing.T) {
	sess, srv := newTestLobby(t)
	conn := dialLobby(t, srv, sess.Code())

	require.NoError(t, conn.WriteJSON(syncRequestEvent("nobody")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	require.Equal(t, EventUpdateState, env.Type)

	st, err := env.state()
	require.NoError(t, err)
	assert.Equal(t, sess.Code(), st.LobbyCode)
	assert.Len(t, st.Players, 1)
}

func TestUnknownEventTypesAreIgnored(t *testing.T) {
	sess, srv := newTestLobby(t)
	conn := dialLobby(t, srv, sess.Code())

	require.NoError(t, conn.WriteJSON(Envelope{Type: "BOGUS"}))
	require.NoError(t, conn.WriteJSON(Envelope{Type: EventKick, Payload: []byte(`{"id":"p0"}`)}))

	bob := newPlayer("Bob", false)
	require.NoError(t, conn.WriteJSON(joinEvent(bob)))

	require.Eventually(t, func() bool {
		return len(sess.Snapshot().Players) == 2
	}, 2*time.Second, 10*time.Millisecond, "session must survive unknown and reserved events")
}

func TestSyncRequestFromEvictedPeerIsDropped(t *testing.T) {
	cfg := &Config{}
	sess := newLobbySession(cfg, "Leader")
	defer sess.Close()

	// A link with no writePump draining it models a stalled follower.
	link := newPeerLink(nil)
	sess.register <- link

	// Enough broadcasts to fill the send buffer and evict the link.
	for i := 0; i <= cap(link.send); i++ {
		sess.AddPlayer(fmt.Sprintf("P%d", i))
	}

	// The connection stays readable after eviction, so a sync request
	// from the evicted peer can still reach the loop. It must be
	// dropped, not crash the session.
	sess.inbound <- inboundEvent{link: link, env: syncRequestEvent("nobody")}

	sess.AddPlayer("Straggler")
	found := false
	for _, p := range sess.Snapshot().Players {
		if p.Nickname == "Straggler" {
			found = true
		}
	}
	assert.True(t, found, "loop must keep serving intents")
}

func TestJoinWrongCodeFails(t *testing.T) {
	sess, srv := newTestLobby(t)

	wrong := "ZZZZZZ"
	if wrong == sess.Code() {
		wrong = "YYYYYY"
	}

	_, err := JoinLobby(context.Background(), &Config{}, srv.URL, wrong, "Bob")
	require.Error(t, err, "a wrong code is a dead address")
}

func TestDisconnectKeepsPlayerRecord(t *testing.T) {
	sess, srv := newTestLobby(t)

	f, err := JoinLobby(context.Background(), &Config{}, srv.URL, sess.Code(), "Bob")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(sess.Snapshot().Players) == 2
	}, 2*time.Second, 10*time.Millisecond)

	f.Close()

	// The channel goes away; the roster entry does not.
	time.Sleep(100 * time.Millisecond)
	sess.StartRound(WordPair{Common: "Apple", Impostor: "Pear"})
	assert.Len(t, sess.Snapshot().Players, 2)
}

func TestLocalSessionHasNoNetworking(t *testing.T) {
	cfg := &Config{}
	sess := newLocalSession(cfg, "Ana")
	defer sess.Close()

	sess.AddPlayer("Ben")
	sess.AddPlayer("Cam")
	sess.StartRound(WordPair{Common: "Apple", Impostor: "Pear"})

	st := sess.Snapshot()
	assert.Equal(t, ModeLocal, st.GameMode)
	assert.Empty(t, st.LobbyCode)
	assert.Equal(t, StatusPlaying, st.Status)
	assert.Equal(t, 0, st.DistributionIndex)

	sess.NextDistribution()
	assert.Equal(t, 1, sess.Snapshot().DistributionIndex)
}

func TestSubscriberSeesAppliedSnapshots(t *testing.T) {
	cfg := &Config{}
	sess := newLocalSession(cfg, "Ana")
	defer sess.Close()

	updates := sess.Subscribe()
	defer sess.Unsubscribe(updates)

	sess.AddPlayer("Ben")

	select {
	case st := <-updates:
		assert.Len(t, st.Players, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
	}
}
