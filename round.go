package main

import (
	mrand "math/rand/v2"
)

// The round state machine. Every function here is pure: it takes a state
// and returns the next one without touching the input. Randomness comes
// from math/rand/v2, which is uniform over permutations; the word pair is
// resolved by the caller before startRound is invoked.

// joinPlayer appends p unless a player with the same id is already known.
func joinPlayer(s GameState, p Player) GameState {
	if _, ok := s.playerByID(p.ID); ok {
		return s
	}
	out := s.Clone()
	out.Players = append(out.Players, p)
	return out
}

// startRound deals roles and words and moves the game to playing. Valid
// from lobby or revealing; calling it mid-round restarts the round, which
// matches the reveal screen's "new round" control.
func startRound(s GameState, pair WordPair) GameState {
	n := len(s.Players)
	if n == 0 {
		return s
	}

	impostorCount := max(1, min(s.Settings.ImpostorCount, n-1))

	impostors := make(map[string]bool, impostorCount)
	for _, i := range mrand.Perm(n)[:impostorCount] {
		impostors[s.Players[i].ID] = true
	}

	out := s.Clone()
	for i := range out.Players {
		p := &out.Players[i]
		if impostors[p.ID] {
			p.Role = RoleImpostor
			if s.Settings.ImpostorMode == ImpostorBlind {
				p.Word = ""
			} else {
				p.Word = pair.Impostor
			}
		} else {
			p.Role = RoleCommon
			p.Word = pair.Common
		}
	}

	// Independent draw; the start player may or may not be an impostor.
	out.StartPlayerID = s.Players[mrand.IntN(n)].ID

	out.Status = StatusPlaying
	out.RoundCount = s.RoundCount + 1
	if s.GameMode == ModeLocal {
		out.DistributionIndex = 0
	} else {
		out.DistributionIndex = -1
	}
	out.UsedWords = appendUsedWords(out.UsedWords, pair.Common, pair.Impostor)

	return out
}

// advanceDistribution hands the device to the next player. Only meaningful
// in local mode during the distribution sub-phase; anywhere else, and once
// the index has reached len(players), it is a no-op.
func advanceDistribution(s GameState) GameState {
	if s.GameMode != ModeLocal || s.Status != StatusPlaying {
		return s
	}
	if s.DistributionIndex < 0 || s.DistributionIndex >= len(s.Players) {
		return s
	}
	out := s.Clone()
	out.DistributionIndex++
	return out
}

// endRound moves to the reveal screen. Roles and words are kept so the
// reveal can show them.
func endRound(s GameState) GameState {
	if s.Status != StatusPlaying {
		return s
	}
	out := s.Clone()
	out.Status = StatusRevealing
	out.DistributionIndex = -1
	return out
}

// returnToLobby resets the round, clearing every player's role and word.
// Accepted from any state.
func returnToLobby(s GameState) GameState {
	out := s.Clone()
	out.Status = StatusLobby
	out.StartPlayerID = ""
	out.DistributionIndex = -1
	for i := range out.Players {
		out.Players[i].Role = ""
		out.Players[i].Word = ""
	}
	return out
}

// updateSettings replaces the settings wholesale.
func updateSettings(s GameState, settings GameSettings) GameState {
	out := s.Clone()
	out.Settings = settings
	return out
}

// addPlayer appends a fresh non-leader player (local roster editing).
func addPlayer(s GameState, nickname string) GameState {
	out := s.Clone()
	out.Players = append(out.Players, newPlayer(nickname, false))
	return out
}

// removePlayer deletes by id.
func removePlayer(s GameState, id string) GameState {
	out := s.Clone()
	players := out.Players[:0]
	for _, p := range out.Players {
		if p.ID != id {
			players = append(players, p)
		}
	}
	out.Players = players
	return out
}

// reorderPlayers moves the player at from to position to, shifting the
// rest. Out-of-range indices are a no-op. Order drives the pass-and-play
// turn sequence.
func reorderPlayers(s GameState, from, to int) GameState {
	n := len(s.Players)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return s
	}
	out := s.Clone()
	moved := out.Players[from]
	players := append(out.Players[:from], out.Players[from+1:]...)
	players = append(players, Player{})
	copy(players[to+1:], players[to:])
	players[to] = moved
	out.Players = players
	return out
}

// appendUsedWords keeps the history FIFO-bounded so the prompt handed to
// the word-generation collaborator stays small.
func appendUsedWords(words []string, more ...string) []string {
	out := append(append([]string(nil), words...), more...)
	if len(out) > maxUsedWords {
		out = out[len(out)-maxUsedWords:]
	}
	return out
}
