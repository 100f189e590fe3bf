package main

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testState(mode GameMode, nicks ...string) GameState {
	players := make([]Player, len(nicks))
	for i, n := range nicks {
		players[i] = Player{
			ID:       fmt.Sprintf("p%d", i),
			Nickname: n,
			IsLeader: i == 0,
			Color:    playerColors[i%len(playerColors)],
		}
	}
	return GameState{
		LobbyCode:         "ABC123",
		Players:           players,
		Status:            StatusLobby,
		GameMode:          mode,
		Settings:          defaultSettings(),
		DistributionIndex: -1,
		UsedWords:         []string{},
	}
}

func countRole(st GameState, role Role) int {
	n := 0
	for _, p := range st.Players {
		if p.Role == role {
			n++
		}
	}
	return n
}

func TestStartRoundAssignsRolesAndWords(t *testing.T) {
	st := testState(ModeOnline, "Ana", "Ben", "Cam", "Dee")
	st.Settings.ImpostorCount = 1

	next := startRound(st, WordPair{Common: "Apple", Impostor: "Pear"})

	require.Equal(t, StatusPlaying, next.Status)
	assert.Equal(t, 1, next.RoundCount)
	assert.Equal(t, -1, next.DistributionIndex)

	impostors := 0
	for _, p := range next.Players {
		switch p.Role {
		case RoleImpostor:
			impostors++
			assert.Equal(t, "Pear", p.Word)
		case RoleCommon:
			assert.Equal(t, "Apple", p.Word)
		default:
			t.Fatalf("player %s has no role", p.Nickname)
		}
	}
	assert.Equal(t, 1, impostors)

	_, ok := next.playerByID(next.StartPlayerID)
	assert.True(t, ok, "start player must be one of the players")

	assert.Equal(t, []string{"Apple", "Pear"}, next.UsedWords)
}

func TestStartRoundBlindImpostor(t *testing.T) {
	st := testState(ModeOnline, "Ana", "Ben", "Cam", "Dee")
	st.Settings.ImpostorMode = ImpostorBlind

	next := startRound(st, WordPair{Common: "Apple", Impostor: "Pear"})

	for _, p := range next.Players {
		if p.Role == RoleImpostor {
			assert.Empty(t, p.Word, "blind impostor must not see a word")
		} else {
			assert.Equal(t, "Apple", p.Word)
		}
	}
}

func TestStartRoundImpostorCardinality(t *testing.T) {
	for n := 3; n <= 8; n++ {
		for k := 1; k <= n+2; k++ {
			nicks := make([]string, n)
			for i := range nicks {
				nicks[i] = fmt.Sprintf("P%d", i)
			}
			st := testState(ModeOnline, nicks...)
			st.Settings.ImpostorCount = k

			next := startRound(st, WordPair{Common: "a", Impostor: "b"})

			want := max(1, min(k, n-1))
			assert.Equalf(t, want, countRole(next, RoleImpostor),
				"n=%d k=%d", n, k)
			assert.Equalf(t, n-want, countRole(next, RoleCommon),
				"n=%d k=%d", n, k)
		}
	}
}

func TestStartRoundDoesNotMutateInput(t *testing.T) {
	st := testState(ModeOnline, "Ana", "Ben", "Cam")
	before := st.Clone()

	_ = startRound(st, WordPair{Common: "Apple", Impostor: "Pear"})

	assert.Equal(t, before, st)
}

func TestStartRoundEmptyRosterIsNoop(t *testing.T) {
	st := testState(ModeOnline)
	next := startRound(st, WordPair{Common: "a", Impostor: "b"})
	assert.Equal(t, st, next)
}

func TestStartRoundLocalModeBeginsDistribution(t *testing.T) {
	st := testState(ModeLocal, "Ana", "Ben", "Cam")
	next := startRound(st, WordPair{Common: "a", Impostor: "b"})
	assert.Equal(t, 0, next.DistributionIndex)
}

func TestUsedWordsCappedAtMostRecentHundred(t *testing.T) {
	st := testState(ModeOnline, "Ana", "Ben", "Cam")

	for i := 0; i < 60; i++ {
		pair := WordPair{
			Common:   fmt.Sprintf("common-%d", i),
			Impostor: fmt.Sprintf("impostor-%d", i),
		}
		st = startRound(st, pair)
	}

	require.Len(t, st.UsedWords, maxUsedWords)
	// 60 rounds x 2 words = 120; the first 20 must have been evicted.
	assert.Equal(t, "common-10", st.UsedWords[0])
	assert.Equal(t, "impostor-59", st.UsedWords[maxUsedWords-1])
}

func TestAdvanceDistribution(t *testing.T) {
	st := testState(ModeLocal, "Ana", "Ben", "Cam")
	st = startRound(st, WordPair{Common: "a", Impostor: "b"})
	require.Equal(t, 0, st.DistributionIndex)

	for want := 1; want <= 3; want++ {
		st = advanceDistribution(st)
		assert.Equal(t, want, st.DistributionIndex)
	}
	assert.True(t, st.distributionDone())

	// Over-advancing past the sentinel is a no-op.
	st = advanceDistribution(st)
	assert.Equal(t, 3, st.DistributionIndex)
}

func TestAdvanceDistributionOnlineIsNoop(t *testing.T) {
	st := testState(ModeOnline, "Ana", "Ben", "Cam")
	st = startRound(st, WordPair{Common: "a", Impostor: "b"})

	next := advanceDistribution(st)
	assert.Equal(t, -1, next.DistributionIndex)
}

func TestEndRound(t *testing.T) {
	st := testState(ModeLocal, "Ana", "Ben", "Cam")
	st = startRound(st, WordPair{Common: "a", Impostor: "b"})

	next := endRound(st)
	assert.Equal(t, StatusRevealing, next.Status)
	assert.Equal(t, -1, next.DistributionIndex)
	for _, p := range next.Players {
		assert.NotEmpty(t, p.Role, "roles must survive into the reveal")
	}

	// Not valid outside of playing.
	lobby := testState(ModeLocal, "Ana", "Ben", "Cam")
	assert.Equal(t, lobby, endRound(lobby))
}

func TestReturnToLobbyClearsRound(t *testing.T) {
	st := testState(ModeLocal, "Ana", "Ben", "Cam")
	st = startRound(st, WordPair{Common: "a", Impostor: "b"})
	st = endRound(st)

	next := returnToLobby(st)

	assert.Equal(t, StatusLobby, next.Status)
	assert.Empty(t, next.StartPlayerID)
	assert.Equal(t, -1, next.DistributionIndex)
	for _, p := range next.Players {
		assert.Empty(t, p.Role)
		assert.Empty(t, p.Word)
	}
	// History survives the reset; it bounds future prompts.
	assert.NotEmpty(t, next.UsedWords)
}

func TestJoinPlayerIsIdempotent(t *testing.T) {
	st := testState(ModeOnline, "Ana")
	p := Player{ID: "x1", Nickname: "Ben", Color: "#3b82f6"}

	once := joinPlayer(st, p)
	twice := joinPlayer(once, p)

	require.Len(t, once.Players, 2)
	assert.Equal(t, once.Players, twice.Players)
}

func TestRosterEdits(t *testing.T) {
	st := testState(ModeLocal, "Ana")

	st = addPlayer(st, "Ben")
	st = addPlayer(st, "Cam")
	require.Len(t, st.Players, 3)
	assert.False(t, st.Players[2].IsLeader)
	assert.NotEmpty(t, st.Players[2].ID)
	assert.Contains(t, playerColors, st.Players[2].Color)

	st = removePlayer(st, st.Players[1].ID)
	require.Len(t, st.Players, 2)
	assert.Equal(t, "Cam", st.Players[1].Nickname)

	// Removing an unknown id changes nothing.
	assert.Equal(t, st.Players, removePlayer(st, "nope").Players)
}

func TestReorderPlayers(t *testing.T) {
	st := testState(ModeLocal, "A", "B", "C")

	next := reorderPlayers(st, 0, 2)
	require.Len(t, next.Players, 3)
	assert.Equal(t, "B", next.Players[0].Nickname)
	assert.Equal(t, "C", next.Players[1].Nickname)
	assert.Equal(t, "A", next.Players[2].Nickname)

	// Out-of-range moves are no-ops.
	assert.Equal(t, st, reorderPlayers(st, -1, 1))
	assert.Equal(t, st, reorderPlayers(st, 0, 3))
}

func TestUpdateSettingsReplacesWholesale(t *testing.T) {
	st := testState(ModeOnline, "Ana", "Ben", "Cam")

	next := updateSettings(st, GameSettings{
		ImpostorCount:  2,
		Language:       "German",
		ImpostorMode:   ImpostorBlind,
		WordSimilarity: SimilarityRandom,
	})

	assert.Equal(t, 2, next.Settings.ImpostorCount)
	assert.Equal(t, "German", next.Settings.Language)
	assert.Equal(t, ImpostorBlind, next.Settings.ImpostorMode)
	assert.Equal(t, SimilarityRandom, next.Settings.WordSimilarity)
}
