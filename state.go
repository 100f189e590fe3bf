package main

import (
	"crypto/rand"
	"encoding/hex"
	mrand "math/rand/v2"
	"net/url"
	"strings"
)

// Role is what a player is for the current round.
type Role string

const (
	RoleCommon   Role = "common"
	RoleImpostor Role = "impostor"
)

// ImpostorMode controls what impostors get to see.
type ImpostorMode string

const (
	// Impostors receive a word of their own, similar to the common one.
	ImpostorDifferentWord ImpostorMode = "different_word"
	// Impostors receive no word at all, only the knowledge that they are it.
	ImpostorBlind ImpostorMode = "blind"
)

// WordSimilarity controls how closely related the two words of a pair are.
type WordSimilarity string

const (
	SimilaritySimilar WordSimilarity = "similar"
	SimilarityRandom  WordSimilarity = "random"
)

// GameStatus is the round cycle: lobby → playing → revealing → lobby.
type GameStatus string

const (
	StatusLobby     GameStatus = "lobby"
	StatusPlaying   GameStatus = "playing"
	StatusRevealing GameStatus = "revealing"
)

// GameMode is fixed for the lifetime of a session.
type GameMode string

const (
	ModeOnline GameMode = "online"
	ModeLocal  GameMode = "local"
)

type Player struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	IsLeader bool   `json:"isLeader"`
	// Empty for blind impostors and outside of a round.
	Word  string `json:"word,omitempty"`
	Role  Role   `json:"role,omitempty"`
	Color string `json:"color"`
}

type GameSettings struct {
	ImpostorCount  int            `json:"impostorCount"`
	Language       string         `json:"language"`
	ImpostorMode   ImpostorMode   `json:"impostorMode"`
	WordSimilarity WordSimilarity `json:"wordSimilarity"`
}

// GameState is the single replicated root. It is only ever replaced
// wholesale, never patched field by field.
type GameState struct {
	LobbyCode string       `json:"lobbyCode"`
	Players   []Player     `json:"players"`
	Status    GameStatus   `json:"status"`
	GameMode  GameMode     `json:"gameMode"`
	Settings  GameSettings `json:"settings"`
	// Who opens the discussion. Empty while in the lobby.
	StartPlayerID string `json:"startPlayerId,omitempty"`
	RoundCount    int    `json:"roundCount"`
	// Local mode: index of the player currently viewing their word,
	// len(Players) once distribution is done. -1 everywhere else.
	DistributionIndex int `json:"distributionIndex"`
	// Last words handed out, oldest first, capped at maxUsedWords.
	UsedWords []string `json:"usedWords"`
}

// Languages the word-generation collaborator is asked for.
var Languages = []string{
	"English",
	"Spanish",
	"French",
	"German",
	"Italian",
	"Portuguese",
	"Chinese",
	"Japanese",
	"Korean",
	"Russian",
}

var playerColors = []string{
	"#ef4444", // red
	"#f97316", // orange
	"#f59e0b", // amber
	"#84cc16", // lime
	"#10b981", // emerald
	"#06b6d4", // cyan
	"#3b82f6", // blue
	"#6366f1", // indigo
	"#8b5cf6", // violet
	"#d946ef", // fuchsia
	"#f43f5e", // rose
}

const (
	maxUsedWords    = 100
	lobbyCodeLength = 6
	peerIDPrefix    = "undercover-"
)

func defaultSettings() GameSettings {
	return GameSettings{
		ImpostorCount:  1,
		Language:       "English",
		ImpostorMode:   ImpostorDifferentWord,
		WordSimilarity: SimilaritySimilar,
	}
}

func newGameState(mode GameMode, code string, leader Player) GameState {
	return GameState{
		LobbyCode:         code,
		Players:           []Player{leader},
		Status:            StatusLobby,
		GameMode:          mode,
		Settings:          defaultSettings(),
		RoundCount:        0,
		DistributionIndex: -1,
		UsedWords:         []string{},
	}
}

// Clone returns a deep copy safe to hand outside the owning goroutine.
func (s GameState) Clone() GameState {
	out := s
	out.Players = append([]Player(nil), s.Players...)
	out.UsedWords = append([]string(nil), s.UsedWords...)
	return out
}

func (s GameState) playerByID(id string) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// distributionDone reports whether every player has seen their word.
func (s GameState) distributionDone() bool {
	return s.DistributionIndex >= len(s.Players)
}

func newPlayer(nickname string, isLeader bool) Player {
	return Player{
		ID:       newPlayerID(),
		Nickname: nickname,
		IsLeader: isLeader,
		Color:    randomColor(),
	}
}

func newPlayerID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

func randomColor() string {
	return playerColors[mrand.IntN(len(playerColors))]
}

// newLobbyCode generates the human-shareable 6-character code.
func newLobbyCode() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	buf := make([]byte, lobbyCodeLength)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	out := make([]byte, lobbyCodeLength)
	for i := range out {
		out[i] = letters[int(buf[i])%len(letters)]
	}
	return string(out)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// lobbyPeerID maps a lobby code to the public peer identifier the leader
// listens under, so a follower can address the leader from the code alone.
func lobbyPeerID(code string) string {
	return peerIDPrefix + normalizeCode(code)
}

// parseJoinCode accepts either a bare lobby code or a pasted share URL
// carrying the code as the "code" query parameter.
func parseJoinCode(arg string) string {
	if strings.Contains(arg, "://") {
		u, err := url.Parse(arg)
		if err == nil {
			if code := u.Query().Get("code"); code != "" {
				return normalizeCode(code)
			}
		}
	}
	return normalizeCode(arg)
}
