package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Phase is a step of the game loop.
type Phase string

const (
	PhaseSetup       Phase = "SETUP"
	PhaseNight       Phase = "NIGHT"
	PhaseDayAnnounce Phase = "DAY_ANNOUNCE"
	PhaseDayVote     Phase = "DAY_VOTE"
	PhaseGameOver    Phase = "GAME_OVER"
)

var (
	ErrIllegalTransition = errors.New("illegal transition")
	ErrNightInProgress   = errors.New("night still has units to wake")
	ErrUnknownPlayer     = errors.New("unknown player")
	ErrUnknownRole       = errors.New("unknown role")
)

// GameMetadata holds flags that carry over between nights.
type GameMetadata struct {
	SkipNextWolfKill         bool   `json:"skip_next_wolf_kill"`
	AllGoodAbilitiesDisabled bool   `json:"all_good_abilities_disabled"`
	InnkeeperDeadTurnNumber  *int   `json:"innkeeper_dead_turn_number,omitempty"`
	CurrentNightRoleIndex    int    `json:"current_night_role_index"`
	ActiveRoleID             string `json:"active_role_id,omitempty"`
	// Warded maps a player to the Lawyer who shielded them from the coming
	// day's banishment.
	Warded map[string]string `json:"warded,omitempty"`
}

// GameState is the whole game. Its methods never modify the receiver; they
// return the next state.
type GameState struct {
	ID              string              `json:"id"`
	Phase           Phase               `json:"phase"`
	TurnNumber      int                 `json:"turn_number"`
	Players         []Player            `json:"players"`
	NightLog        []string            `json:"night_log"`
	NightActions    []NightActionRecord `json:"night_actions"`
	DayLog          []string            `json:"day_log"`
	LastNightDeaths []string            `json:"last_night_deaths"`
	Winner          Faction             `json:"winner,omitempty"`
	WinReason       string              `json:"win_reason,omitempty"`
	Metadata        GameMetadata        `json:"metadata"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func NewGame(id string) GameState {
	if id == "" {
		id = uuid.NewString()
	}
	return GameState{ID: id, Phase: PhaseSetup}
}

func (g GameState) clone() GameState {
	g.Players = clonePlayers(g.Players)
	g.NightLog = slices.Clone(g.NightLog)
	g.NightActions = slices.Clone(g.NightActions)
	g.DayLog = slices.Clone(g.DayLog)
	g.LastNightDeaths = slices.Clone(g.LastNightDeaths)
	if t := g.Metadata.InnkeeperDeadTurnNumber; t != nil {
		v := *t
		g.Metadata.InnkeeperDeadTurnNumber = &v
	}
	g.Metadata.Warded = maps.Clone(g.Metadata.Warded)
	return g
}

func illegal(from Phase, op string) error {
	return fmt.Errorf("%w: %s during %s", ErrIllegalTransition, op, from)
}

func (g GameState) player(id string) (int, error) {
	i := findPlayer(g.Players, id)
	if i < 0 {
		return -1, fmt.Errorf("%w: %q", ErrUnknownPlayer, id)
	}
	return i, nil
}

// Sequence is tonight's wake order for the current living players.
func (g GameState) Sequence() []WakeUnit {
	return SequenceWake(livingPlayers(g.Players))
}

// CurrentUnit returns the unit being woken, if any is left.
func (g GameState) CurrentUnit() (WakeUnit, bool) {
	if g.Phase != PhaseNight {
		return WakeUnit{}, false
	}
	seq := g.Sequence()
	i := g.Metadata.CurrentNightRoleIndex
	if i < 0 || i >= len(seq) {
		return WakeUnit{}, false
	}
	return seq[i], true
}

func (g GameState) NightComplete() bool {
	_, ok := g.CurrentUnit()
	return !ok
}

func (g *GameState) advanceWake() {
	g.Metadata.CurrentNightRoleIndex++
	g.syncActiveRole()
}

func (g *GameState) syncActiveRole() {
	g.Metadata.ActiveRoleID = ""
	if u, ok := g.CurrentUnit(); ok {
		g.Metadata.ActiveRoleID = u.Role.ID
	}
}

func (g *GameState) beginNight() {
	g.Phase = PhaseNight
	g.NightActions = nil
	g.NightLog = nil
	g.Metadata.CurrentNightRoleIndex = 0
	g.Metadata.Warded = nil
	g.syncActiveRole()
}

// StartGame confirms the role assignment and opens the first night.
func (g GameState) StartGame() (GameState, error) {
	if g.Phase != PhaseSetup {
		return g, illegal(g.Phase, "start game")
	}
	if len(g.Players) == 0 {
		return g, fmt.Errorf("%w: no players seated", ErrIllegalTransition)
	}
	next := g.clone()
	next.TurnNumber = 1
	next.Metadata = GameMetadata{}
	next.DayLog = nil
	next.LastNightDeaths = nil
	next.beginNight()
	return next, nil
}

// RecordAction stores the current unit's action and moves on to the next
// unit. A blocked unit is logged and passed over without recording.
func (g GameState) RecordAction(primary, secondary string, at time.Time) (GameState, error) {
	if g.Phase != PhaseNight {
		return g, illegal(g.Phase, "record action")
	}
	unit, ok := g.CurrentUnit()
	if !ok {
		return g, fmt.Errorf("%w: no unit left to wake", ErrIllegalTransition)
	}

	next := g.clone()
	if unit.Blocked() {
		next.NightLog = append(next.NightLog, unit.Label()+" - BLOCKED by Hag")
		next.advanceWake()
		return next, nil
	}

	ti, err := next.player(primary)
	if err != nil {
		return g, err
	}
	if secondary != "" {
		if _, err := next.player(secondary); err != nil {
			return g, err
		}
	}

	actor := unit.Player
	for _, m := range unit.Members {
		if !m.IsAbilityBlocked {
			actor = m
			break
		}
	}
	kind := actor.Role.NightAction
	next.NightActions = append(next.NightActions, NightActionRecord{
		RoleID:         actor.Role.ID,
		ActorID:        actor.ID,
		TargetID:       primary,
		SecondTargetID: secondary,
		Kind:           kind,
		Timestamp:      at,
	})
	if kind == ActionBlock {
		next.Players[ti].IsAbilityBlocked = true
	}

	entry := fmt.Sprintf("%s - %s %s", unit.Label(), kind, next.Players[ti].Name)
	if si := findPlayer(next.Players, secondary); si >= 0 {
		entry += " & " + next.Players[si].Name
	}
	next.NightLog = append(next.NightLog, entry)
	next.advanceWake()
	return next, nil
}

// SkipUnit passes over the current unit without an action.
func (g GameState) SkipUnit() (GameState, error) {
	if g.Phase != PhaseNight {
		return g, illegal(g.Phase, "skip unit")
	}
	unit, ok := g.CurrentUnit()
	if !ok {
		return g, fmt.Errorf("%w: no unit left to wake", ErrIllegalTransition)
	}
	next := g.clone()
	next.NightLog = append(next.NightLog, unit.Label()+" - Skipped")
	next.advanceWake()
	return next, nil
}

// EndNight resolves the night once every unit has been woken.
func (g GameState) EndNight(rng Random) (GameState, error) {
	if g.Phase != PhaseNight {
		return g, illegal(g.Phase, "end night")
	}
	if !g.NightComplete() {
		return g, ErrNightInProgress
	}

	next := g.clone()
	res := ResolveNight(next.Players, next.NightActions, next.Metadata, rng)
	res.Patch.applyTo(&next.Metadata)
	next.Metadata.Warded = res.Warded
	next.NightLog = append(next.NightLog, res.Logs...)

	dr := ApplyDeaths(res.Players, res.Deaths)
	for _, id := range dr.LinkedDeaths {
		p := dr.Players[findPlayer(dr.Players, id)]
		next.NightLog = append(next.NightLog, fmt.Sprintf("%s died of a broken bond", p.Name))
	}

	dead := append(slices.Clone(res.Deaths), dr.LinkedDeaths...)
	next.Players = dr.Players
	next.Metadata = deathEffects(next.Players, dead, next.Metadata, next.TurnNumber)
	next.LastNightDeaths = dead
	next.DayLog = nil
	next.Phase = PhaseDayAnnounce
	next.Metadata.ActiveRoleID = ""
	return next, nil
}

func (g GameState) ContinueToVote() (GameState, error) {
	if g.Phase != PhaseDayAnnounce {
		return g, illegal(g.Phase, "continue to vote")
	}
	next := g.clone()
	next.Phase = PhaseDayVote
	return next, nil
}

// StartNextNight closes the day, clears every per-night flag and opens the
// next night.
func (g GameState) StartNextNight() (GameState, error) {
	if g.Phase != PhaseDayVote {
		return g, illegal(g.Phase, "start next night")
	}
	next := g.clone()
	next.TurnNumber++
	for i := range next.Players {
		p := &next.Players[i]
		p.IsProtectedPhysical = false
		p.IsProtectedWerewolf = false
		p.IsAbilityBlocked = false
		p.IsSilenced = false
	}
	next.beginNight()
	return next, nil
}

// EndGame records a win. The caller decides when the game is won.
func (g GameState) EndGame(o Outcome) (GameState, error) {
	if g.Phase == PhaseGameOver {
		return g, illegal(g.Phase, "end game")
	}
	if !o.IsWin() {
		return g, fmt.Errorf("%w: outcome is %s", ErrIllegalTransition, o.Status)
	}
	next := g.clone()
	next.Phase = PhaseGameOver
	next.Winner = o.Winner
	next.WinReason = o.Reason
	next.Metadata.ActiveRoleID = ""
	return next, nil
}

// Reset discards everything and returns a fresh game in SETUP.
func (g GameState) Reset() GameState {
	return NewGame("")
}

func (g *GameState) moderatorLog(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if g.Phase == PhaseNight {
		g.NightLog = append(g.NightLog, line)
		return
	}
	g.DayLog = append(g.DayLog, line)
}

func (g GameState) checkOverride(op string) error {
	if g.Phase == PhaseSetup || g.Phase == PhaseGameOver {
		return illegal(g.Phase, op)
	}
	return nil
}

// KillPlayer is the moderator's manual kill. An Old Man loses a life first.
func (g GameState) KillPlayer(id string) (GameState, error) {
	if err := g.checkOverride("kill player"); err != nil {
		return g, err
	}
	i, err := g.player(id)
	if err != nil {
		return g, err
	}
	if !g.Players[i].IsAlive {
		return g, nil
	}

	next := g.clone()
	p := &next.Players[i]
	if p.Role.HasTrait(TraitExtraLife) && p.Metadata.OldManLives > 1 {
		p.Metadata.OldManLives--
		next.moderatorLog("%s (%s) lost a life (%d left)", p.Name, p.Role.Name, p.Metadata.OldManLives)
		return next, nil
	}

	dr := ApplyDeaths(next.Players, []string{id})
	next.Players = dr.Players
	next.moderatorLog("%s was killed by the moderator", next.Players[i].Name)
	for _, lid := range dr.LinkedDeaths {
		next.moderatorLog("%s died of a broken bond", next.Players[findPlayer(next.Players, lid)].Name)
	}
	next.Metadata = deathEffects(next.Players, append([]string{id}, dr.LinkedDeaths...), next.Metadata, next.TurnNumber)
	return next, nil
}

func (g GameState) RevivePlayer(id string) (GameState, error) {
	if err := g.checkOverride("revive player"); err != nil {
		return g, err
	}
	i, err := g.player(id)
	if err != nil {
		return g, err
	}
	next := g.clone()
	next.Players[i].IsAlive = true
	next.moderatorLog("%s was revived by the moderator", next.Players[i].Name)
	return next, nil
}

// SetAttribute adds or removes a tag such as "Mayor".
func (g GameState) SetAttribute(id, attr string, on bool) (GameState, error) {
	if g.Phase == PhaseGameOver {
		return g, illegal(g.Phase, "set attribute")
	}
	i, err := g.player(id)
	if err != nil {
		return g, err
	}
	next := g.clone()
	p := &next.Players[i]
	has := p.HasAttribute(attr)
	switch {
	case on && !has:
		p.Attributes = append(p.Attributes, attr)
	case !on && has:
		p.Attributes = slices.DeleteFunc(p.Attributes, func(a string) bool { return a == attr })
	}
	return next, nil
}
