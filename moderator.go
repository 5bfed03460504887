package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUnknownFaction = errors.New("unknown faction")
)

// Command is one moderator instruction, sent over HTTP or the WebSocket.
type Command struct {
	Action         string       `json:"action"`
	PlayerID       string       `json:"player_id,omitempty"`
	Name           string       `json:"name,omitempty"`
	RoleID         string       `json:"role_id,omitempty"`
	Names          []string     `json:"names,omitempty"`
	RoleIDs        []string     `json:"role_ids,omitempty"`
	TargetID       string       `json:"target_id,omitempty"`
	SecondTargetID string       `json:"second_target_id,omitempty"`
	Attribute      string       `json:"attribute,omitempty"`
	On             bool         `json:"on,omitempty"`
	Votes          []VoteRecord `json:"votes,omitempty"`
	Winner         Faction      `json:"winner,omitempty"`
	Reason         string       `json:"reason,omitempty"`
}

// CommandResult is what a command produced.
type CommandResult struct {
	State    StateView  `json:"state"`
	Tally    *VoteTally `json:"tally,omitempty"`
	Banished *bool      `json:"banished,omitempty"`
}

// WakeStep describes one wake unit for the console.
type WakeStep struct {
	Label     string   `json:"label"`
	RoleID    string   `json:"role_id"`
	PlayerIDs []string `json:"player_ids"`
	Blocked   bool     `json:"blocked"`
}

// StateView is the snapshot pushed to consoles.
type StateView struct {
	Game        GameState  `json:"game"`
	Wake        []WakeStep `json:"wake"`
	CurrentUnit *WakeStep  `json:"current_unit,omitempty"`
	Summary     Summary    `json:"summary"`
	Outcome     Outcome    `json:"outcome"`
}

func wakeStep(u WakeUnit) WakeStep {
	s := WakeStep{Label: u.Label(), RoleID: u.Role.ID, Blocked: u.Blocked()}
	if u.IsPack() {
		for _, m := range u.Members {
			s.PlayerIDs = append(s.PlayerIDs, m.ID)
		}
	} else {
		s.PlayerIDs = []string{u.Player.ID}
	}
	return s
}

func newStateView(g GameState) StateView {
	v := StateView{
		Game:    g,
		Wake:    []WakeStep{},
		Summary: Summarize(g.Players),
		Outcome: CheckWin(g.Players, g.Metadata, g.TurnNumber),
	}
	if g.Phase == PhaseSetup {
		v.Outcome = Outcome{Status: StatusOngoing}
	}
	for _, u := range g.Sequence() {
		v.Wake = append(v.Wake, wakeStep(u))
	}
	if u, ok := g.CurrentUnit(); ok {
		s := wakeStep(u)
		v.CurrentUnit = &s
	}
	return v
}

// Moderator owns the authoritative game. Commands are applied one at a time;
// every accepted command is persisted and pushed to the consoles.
type Moderator struct {
	mu          sync.Mutex
	state       GameState
	reg         *Registry
	store       Store
	rng         Random
	clock       Clock
	hub         *Hub
	storyteller Storyteller
	storyWG     sync.WaitGroup
}

// NewModerator resumes the most recently saved game, or starts a new one.
func NewModerator(ctx context.Context, store Store, reg *Registry, rng Random, clock Clock, hub *Hub) (*Moderator, error) {
	m := &Moderator{reg: reg, store: store, rng: rng, clock: clock, hub: hub}
	g, err := store.LatestGame(ctx)
	switch {
	case errors.Is(err, ErrGameNotFound):
		g = NewGame("")
		g.UpdatedAt = clock.Now()
		if err := store.SaveGame(ctx, g); err != nil {
			return nil, fmt.Errorf("save new game: %w", err)
		}
		log.Printf("Started new game %s", g.ID)
	case err != nil:
		return nil, fmt.Errorf("load latest game: %w", err)
	default:
		log.Printf("Resumed game %s (%s, turn %d)", g.ID, g.Phase, g.TurnNumber)
	}
	m.state = g
	return m, nil
}

// State returns a copy of the current game.
func (m *Moderator) State() GameState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *Moderator) View() StateView {
	return newStateView(m.State())
}

// GameID is the id of the game being moderated.
func (m *Moderator) GameID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ID
}

// Apply runs a command against the current game.
func (m *Moderator) Apply(ctx context.Context, cmd Command) (CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res CommandResult
	g := m.state
	next, err := m.transform(g, cmd, &res)
	if err != nil {
		if devMode {
			LogStateDump("rejected "+cmd.Action, g)
		}
		return res, fmt.Errorf("%s: %w", cmd.Action, err)
	}

	if cmd.Action == "end_night" || cmd.Action == "banish" {
		if o := CheckWin(next.Players, next.Metadata, next.TurnNumber); o.IsWin() {
			next, _ = next.EndGame(o)
			log.Printf("Game %s finished, winner: %s (%s)", next.ID, o.Winner, o.Reason)
		}
	}

	if err := m.commitLocked(ctx, next, cmd.Action); err != nil {
		return res, err
	}
	res.State = newStateView(m.state)

	if cmd.Action == "end_night" && len(m.state.LastNightDeaths) > 0 {
		m.maybeGenerateStory(m.state)
	}
	return res, nil
}

// commitLocked persists next, makes it current and broadcasts it.
func (m *Moderator) commitLocked(ctx context.Context, next GameState, context string) error {
	next.UpdatedAt = m.clock.Now()
	if err := m.store.SaveGame(ctx, next); err != nil {
		return fmt.Errorf("save game: %w", err)
	}
	m.state = next
	DebugLog("Game %s after %s: phase=%s turn=%d", next.ID, context, next.Phase, next.TurnNumber)
	LogStateDump("after "+context, next)
	if m.hub != nil {
		m.hub.broadcastState(newStateView(next))
	}
	return nil
}

func (m *Moderator) transform(g GameState, cmd Command, res *CommandResult) (GameState, error) {
	switch cmd.Action {
	case "reset":
		log.Printf("Game %s reset", g.ID)
		return g.Reset(), nil
	case "add_player":
		next, p, err := g.AddPlayer(m.reg, cmd.Name, cmd.RoleID)
		if err == nil {
			log.Printf("Player added: name='%s', role=%s", p.Name, p.Role.ID)
		}
		return next, err
	case "remove_player":
		return g.RemovePlayer(cmd.PlayerID)
	case "deal_roles":
		return g.DealRoles(m.reg, cmd.Names, cmd.RoleIDs, m.rng)
	case "start_game":
		next, err := g.StartGame()
		if err == nil {
			log.Printf("Game %s started with %d players", g.ID, len(next.Players))
		}
		return next, err
	case "record_action":
		return g.RecordAction(cmd.TargetID, cmd.SecondTargetID, m.clock.Now())
	case "skip_unit":
		return g.SkipUnit()
	case "end_night":
		next, err := g.EndNight(m.rng)
		if err == nil {
			log.Printf("Night %d ended: %d deaths", g.TurnNumber, len(next.LastNightDeaths))
		}
		return next, err
	case "continue":
		return g.ContinueToVote()
	case "tally_votes":
		if g.Phase != PhaseDayVote {
			return g, illegal(g.Phase, "tally votes")
		}
		t := g.TallyVotes(cmd.Votes)
		res.Tally = &t
		return g, nil
	case "banish":
		next, banished, err := g.Banish(cmd.TargetID)
		if err == nil {
			res.Banished = &banished
		}
		return next, err
	case "next_night":
		next, err := g.StartNextNight()
		if err == nil {
			log.Printf("Day %d ended, transitioning to night %d", g.TurnNumber, next.TurnNumber)
		}
		return next, err
	case "kill":
		return g.KillPlayer(cmd.PlayerID)
	case "revive":
		return g.RevivePlayer(cmd.PlayerID)
	case "set_attribute":
		return g.SetAttribute(cmd.PlayerID, cmd.Attribute, cmd.On)
	case "end_game":
		o := CheckWin(g.Players, g.Metadata, g.TurnNumber)
		if cmd.Winner != "" {
			if !cmd.Winner.Valid() {
				return g, fmt.Errorf("%w %q", ErrUnknownFaction, cmd.Winner)
			}
			reason := cmd.Reason
			if reason == "" {
				reason = "Declared by the moderator"
			}
			o = Outcome{Status: StatusWin, Winner: cmd.Winner, Reason: reason}
		}
		return g.EndGame(o)
	}
	return g, fmt.Errorf("%w %q", ErrUnknownCommand, cmd.Action)
}

// maybeGenerateStory streams a short story about the night's deaths into the
// day log. Returns immediately.
func (m *Moderator) maybeGenerateStory(g GameState) {
	if m.storyteller == nil {
		return
	}
	var history []string
	history = append(history, g.NightLog...)
	for _, id := range g.LastNightDeaths {
		if i := findPlayer(g.Players, id); i >= 0 {
			history = append(history, fmt.Sprintf("%s (%s) was found dead at dawn", g.Players[i].Name, g.Players[i].Role.Name))
		}
	}

	m.storyWG.Add(1)
	go func() {
		defer m.storyWG.Done()

		line := -1
		var mu sync.Mutex
		var buf strings.Builder
		flush := func() {
			mu.Lock()
			text := strings.TrimSpace(buf.String())
			mu.Unlock()
			if text != "" {
				line = m.setStoryLine(g.ID, g.TurnNumber, line, text)
			}
		}

		// Flush goroutine: pushes partial text to the consoles every 300ms
		done := make(chan struct{})
		stopped := make(chan struct{})
		go func() {
			defer close(stopped)
			ticker := time.NewTicker(300 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					flush()
				case <-done:
					return
				}
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		_, err := m.storyteller.Tell(ctx, history, func(chunk string) {
			mu.Lock()
			buf.WriteString(chunk)
			mu.Unlock()
		})
		close(done)
		<-stopped

		if err != nil {
			log.Printf("maybeGenerateStory: storyteller error: %v", err)
			return
		}
		flush()
		log.Printf("Storyteller: completed story for game %s night %d", g.ID, g.TurnNumber)
	}()
}

// setStoryLine writes the story text into the day log, appending a line the
// first time. It returns the line index, or -1 once the game has moved on.
func (m *Moderator) setStoryLine(gameID string, turn, line int, text string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.ID != gameID || m.state.TurnNumber != turn || m.state.Phase == PhaseNight {
		return -1
	}
	next := m.state.clone()
	entry := "Storyteller: " + text
	switch {
	case line < 0:
		next.DayLog = append(next.DayLog, entry)
		line = len(next.DayLog) - 1
	case line < len(next.DayLog):
		next.DayLog[line] = entry
	default:
		return -1
	}
	if err := m.commitLocked(context.Background(), next, "story"); err != nil {
		logError("setStoryLine", err)
	}
	return line
}

// waitStories blocks until running storyteller goroutines finish.
func (m *Moderator) waitStories() { m.storyWG.Wait() }
