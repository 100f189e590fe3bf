package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
)

const (
	menuStartRound  = "Start round"
	menuNewRound    = "New round"
	menuEndRound    = "End round"
	menuBackToLobby = "Back to lobby"
	menuSettings    = "Change settings"
	menuAddPlayer   = "Add player"
	menuRemove      = "Remove player"
	menuMove        = "Move player"
	menuShowShare   = "Show share link"
	menuRefresh     = "Refresh"
	menuQuit        = "Quit"
)

func banner() {
	title, err := pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("Under", pterm.FgLightBlue.ToStyle()),
		putils.LettersFromStringWithStyle("cover", pterm.FgRed.ToStyle()),
	).Srender()
	if err == nil {
		pterm.Print(title)
	}
	pterm.Println(pterm.Gray("Find the impostor among us."))
	pterm.Println()
}

func resolveNickname(cfg *Config) (string, error) {
	if strings.TrimSpace(cfg.nickname) != "" {
		return strings.TrimSpace(cfg.nickname), nil
	}
	name, err := pterm.DefaultInteractiveTextInput.Show("Enter your nickname")
	if err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("a nickname is required")
	}
	return name, nil
}

// colorDot renders the player's display color as a colored bullet.
func colorDot(p Player) string {
	rgb, err := pterm.NewRGBFromHEX(p.Color)
	if err != nil {
		return "●"
	}
	return rgb.Sprint("●")
}

func renderLobby(st GameState, localID string) {
	if st.GameMode == ModeLocal {
		pterm.DefaultSection.Println("Pass & Play Lobby")
	} else {
		pterm.DefaultSection.Println("Lobby " + st.LobbyCode)
	}

	rows := pterm.TableData{{"", "Player", ""}}
	for _, p := range st.Players {
		tag := ""
		if p.IsLeader {
			tag = "♛ leader"
		}
		name := p.Nickname
		if st.GameMode == ModeOnline && p.ID == localID {
			name += " (you)"
		}
		rows = append(rows, []string{colorDot(p), name, tag})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()

	s := st.Settings
	pterm.Info.Printfln("Settings: %d impostor(s), %s, mode %s, words %s",
		s.ImpostorCount, s.Language, s.ImpostorMode, s.WordSimilarity)

	if len(st.Players) < 3 {
		pterm.Warning.Println("Need 3+ players to start.")
	}
}

// renderWordCard shows what one player is allowed to see: their word, or
// the impostor notice when there is no word to show. It never reveals the
// role of a player who got a word.
func renderWordCard(p Player) {
	box := pterm.DefaultBox.WithTitle(p.Nickname).WithTitleTopCenter()
	if p.Role == RoleImpostor && p.Word == "" {
		box.Println(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("YOU ARE THE IMPOSTOR"))
	} else {
		box.Println("Your secret word: " + pterm.NewStyle(pterm.Bold).Sprint(p.Word))
	}
}

func renderDiscussion(st GameState) {
	if start, ok := st.playerByID(st.StartPlayerID); ok {
		pterm.Info.Printfln("Round %d. %s %s opens the discussion.", st.RoundCount, colorDot(start), start.Nickname)
	} else {
		pterm.Info.Printfln("Round %d. Discuss!", st.RoundCount)
	}
}

func renderReveal(st GameState) {
	pterm.DefaultSection.Println("Reveal")

	rows := pterm.TableData{{"", "Player", "Role", "Word"}}
	for _, p := range st.Players {
		role := string(p.Role)
		word := p.Word
		if p.Role == RoleImpostor {
			role = pterm.Red(role)
			if word == "" {
				word = pterm.Gray("(blind)")
			}
		}
		rows = append(rows, []string{colorDot(p), p.Nickname, role, word})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

// generateWordPair resolves a pair from the collaborator, substituting the
// fallback pair on any failure so the round always starts.
func generateWordPair(ctx context.Context, cfg *Config, source WordSource, st GameState) WordPair {
	ctx, cancel := context.WithTimeout(ctx, cfg.wordTimeout)
	defer cancel()

	spinner, _ := pterm.DefaultSpinner.Start("Generating a word pair...")
	pair, err := source.Generate(ctx, st.Settings.Language, st.Settings.WordSimilarity, st.UsedWords)
	if err != nil {
		logf(cfg, "WORDS: Generation failed: %v", err)
		if spinner != nil {
			spinner.Warning("Word generation failed; using fallback words.")
		}
		return fallbackWordPair
	}
	if spinner != nil {
		spinner.Success("Words ready.")
	}
	return pair
}

func editSettings(sess *Session, st GameState) {
	settings := st.Settings
	n := len(st.Players)

	choice, err := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Language", "Impostor count", "Impostor mode", "Word similarity", "Back"}).
		Show("Change which setting?")
	if err != nil {
		return
	}

	switch choice {
	case "Language":
		lang, err := pterm.DefaultInteractiveSelect.WithOptions(Languages).Show("Language")
		if err != nil {
			return
		}
		settings.Language = lang

	case "Impostor count":
		// Recommended bound: at least two non-impostors.
		limit := max(1, n-2)
		input, err := pterm.DefaultInteractiveTextInput.
			WithDefaultValue(strconv.Itoa(settings.ImpostorCount)).
			Show(fmt.Sprintf("Impostors (1-%d)", limit))
		if err != nil {
			return
		}
		count, convErr := strconv.Atoi(strings.TrimSpace(input))
		if convErr != nil {
			pterm.Warning.Println("Not a number.")
			return
		}
		settings.ImpostorCount = max(1, min(count, limit))

	case "Impostor mode":
		mode, err := pterm.DefaultInteractiveSelect.
			WithOptions([]string{"Different word", "Blind"}).
			Show("Impostor mode")
		if err != nil {
			return
		}
		if mode == "Blind" {
			settings.ImpostorMode = ImpostorBlind
		} else {
			settings.ImpostorMode = ImpostorDifferentWord
		}

	case "Word similarity":
		sim, err := pterm.DefaultInteractiveSelect.
			WithOptions([]string{"Similar (hard)", "Random (chaos)"}).
			Show("Word pair similarity")
		if err != nil {
			return
		}
		if strings.HasPrefix(sim, "Random") {
			settings.WordSimilarity = SimilarityRandom
		} else {
			settings.WordSimilarity = SimilaritySimilar
		}

	default:
		return
	}

	sess.UpdateSettings(settings)
}

func pickPlayer(st GameState, prompt string) (Player, bool) {
	options := make([]string, 0, len(st.Players))
	for _, p := range st.Players {
		options = append(options, p.Nickname)
	}
	options = append(options, "Back")

	choice, err := pterm.DefaultInteractiveSelect.WithOptions(options).Show(prompt)
	if err != nil || choice == "Back" {
		return Player{}, false
	}
	for _, p := range st.Players {
		if p.Nickname == choice {
			return p, true
		}
	}
	return Player{}, false
}

// newJoiners returns roster entries not yet marked in known, marking
// them as it goes.
func newJoiners(known map[string]bool, st GameState) []Player {
	var out []Player
	for _, p := range st.Players {
		if !known[p.ID] {
			known[p.ID] = true
			out = append(out, p)
		}
	}
	return out
}

// announceJoins watches the session's snapshots and prints arrivals as
// they happen, so the lobby roster does not go stale while the menu is
// waiting for input.
func announceJoins(ctx context.Context, sess *Session) {
	updates := sess.Subscribe()
	defer sess.Unsubscribe(updates)

	known := make(map[string]bool)
	newJoiners(known, sess.Snapshot())

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			if st.Status != StatusLobby {
				continue
			}
			for _, p := range newJoiners(known, st) {
				pterm.Info.Printfln("%s %s joined the lobby.", colorDot(p), p.Nickname)
			}
		}
	}
}

// runHostUI drives the leader's screens for an online lobby.
func runHostUI(ctx context.Context, cfg *Config, sess *Session) error {
	banner()
	pterm.Success.Printfln("Lobby code: %s", sess.Code())
	pterm.Info.Printfln("Share: %s (QR at %s)", shareURL(cfg, sess.Code()), shareQRURL(cfg))

	go announceJoins(ctx, sess)

	source := newWordSource(cfg)

	for ctx.Err() == nil {
		st := sess.Snapshot()

		switch st.Status {
		case StatusLobby:
			renderLobby(st, sess.LocalID())

			options := []string{menuRefresh, menuSettings, menuShowShare, menuQuit}
			if len(st.Players) >= 3 {
				options = append([]string{menuStartRound}, options...)
			}
			choice, err := pterm.DefaultInteractiveSelect.WithOptions(options).Show("Lobby")
			if err != nil {
				return nil
			}
			switch choice {
			case menuStartRound:
				sess.StartRound(generateWordPair(ctx, cfg, source, st))
			case menuSettings:
				editSettings(sess, st)
			case menuShowShare:
				pterm.Info.Printfln("Share: %s", shareURL(cfg, sess.Code()))
			case menuQuit:
				return nil
			}

		case StatusPlaying:
			if me, ok := st.playerByID(sess.LocalID()); ok {
				renderWordCard(me)
			}
			renderDiscussion(st)

			choice, err := pterm.DefaultInteractiveSelect.
				WithOptions([]string{menuEndRound, menuRefresh, menuQuit}).
				Show("Round in progress")
			if err != nil {
				return nil
			}
			switch choice {
			case menuEndRound:
				sess.EndRound()
			case menuQuit:
				return nil
			}

		case StatusRevealing:
			renderReveal(st)

			choice, err := pterm.DefaultInteractiveSelect.
				WithOptions([]string{menuNewRound, menuBackToLobby, menuQuit}).
				Show("Reveal")
			if err != nil {
				return nil
			}
			switch choice {
			case menuNewRound:
				sess.StartRound(generateWordPair(ctx, cfg, source, st))
			case menuBackToLobby:
				sess.ReturnToLobby()
			case menuQuit:
				return nil
			}
		}
	}

	return nil
}

// runLocalUI drives pass-and-play: the same round screens plus roster
// editing and the per-player distribution sub-phase.
func runLocalUI(ctx context.Context, cfg *Config, sess *Session) error {
	banner()
	source := newWordSource(cfg)

	for ctx.Err() == nil {
		st := sess.Snapshot()

		switch {
		case st.Status == StatusLobby:
			renderLobby(st, sess.LocalID())

			options := []string{menuAddPlayer, menuRemove, menuMove, menuSettings, menuQuit}
			if len(st.Players) >= 3 {
				options = append([]string{menuStartRound}, options...)
			}
			choice, err := pterm.DefaultInteractiveSelect.WithOptions(options).Show("Lobby")
			if err != nil {
				return nil
			}
			switch choice {
			case menuStartRound:
				sess.StartRound(generateWordPair(ctx, cfg, source, st))
			case menuAddPlayer:
				name, err := pterm.DefaultInteractiveTextInput.Show("New player name")
				if err == nil && strings.TrimSpace(name) != "" {
					sess.AddPlayer(strings.TrimSpace(name))
				}
			case menuRemove:
				if p, ok := pickPlayer(st, "Remove which player?"); ok {
					sess.RemovePlayer(p.ID)
				}
			case menuMove:
				movePlayer(sess, st)
			case menuSettings:
				editSettings(sess, st)
			case menuQuit:
				return nil
			}

		case st.Status == StatusPlaying && !st.distributionDone():
			// Distribution sub-phase: one player at a time sees their
			// word, then passes the device on.
			current := st.Players[st.DistributionIndex]
			ok, err := pterm.DefaultInteractiveConfirm.
				WithDefaultValue(true).
				Show(fmt.Sprintf("Pass the device to %s. Ready?", current.Nickname))
			if err != nil {
				return nil
			}
			if !ok {
				continue
			}
			renderWordCard(current)
			if _, err := pterm.DefaultInteractiveConfirm.
				WithDefaultValue(true).
				Show("Memorized? The word disappears now."); err != nil {
				return nil
			}
			pterm.Print("\033[2J\033[H") // wipe the word off the screen
			sess.NextDistribution()

		case st.Status == StatusPlaying:
			renderDiscussion(st)

			choice, err := pterm.DefaultInteractiveSelect.
				WithOptions([]string{menuEndRound, menuQuit}).
				Show("Round in progress")
			if err != nil {
				return nil
			}
			switch choice {
			case menuEndRound:
				sess.EndRound()
			case menuQuit:
				return nil
			}

		case st.Status == StatusRevealing:
			renderReveal(st)

			choice, err := pterm.DefaultInteractiveSelect.
				WithOptions([]string{menuNewRound, menuBackToLobby, menuQuit}).
				Show("Reveal")
			if err != nil {
				return nil
			}
			switch choice {
			case menuNewRound:
				sess.StartRound(generateWordPair(ctx, cfg, source, st))
			case menuBackToLobby:
				sess.ReturnToLobby()
			case menuQuit:
				return nil
			}
		}
	}

	return nil
}

func movePlayer(sess *Session, st GameState) {
	p, ok := pickPlayer(st, "Move which player?")
	if !ok {
		return
	}
	from := -1
	for i, q := range st.Players {
		if q.ID == p.ID {
			from = i
			break
		}
	}
	if from < 0 {
		return
	}
	input, err := pterm.DefaultInteractiveTextInput.
		Show(fmt.Sprintf("New position (1-%d)", len(st.Players)))
	if err != nil {
		return
	}
	to, convErr := strconv.Atoi(strings.TrimSpace(input))
	if convErr != nil || to < 1 || to > len(st.Players) {
		pterm.Warning.Println("Not a valid position.")
		return
	}
	sess.ReorderPlayers(from, to-1)
}

// runFollowerUI mirrors the leader: it renders every snapshot as it
// arrives and offers no state-changing controls.
func runFollowerUI(ctx context.Context, cfg *Config, f *Follower) error {
	banner()
	pterm.Info.Println("Joined. Waiting for the leader...")

	updates := f.Subscribe()

	render := func(st GameState) {
		switch st.Status {
		case StatusLobby:
			renderLobby(st, f.LocalID())
			pterm.Info.Println("Only the lobby leader can change settings or start the round.")
		case StatusPlaying:
			if me, ok := st.playerByID(f.LocalID()); ok {
				renderWordCard(me)
			}
			renderDiscussion(st)
		case StatusRevealing:
			renderReveal(st)
		}
	}

	render(f.Snapshot())

	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-updates:
			if !ok {
				pterm.Warning.Println("Connection to the leader was lost.")
				return nil
			}
			render(st)
		}
	}
}
