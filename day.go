package main

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

var ErrPlayerDead = errors.New("player is dead")

// VoteRecord is one player's vote at the day gathering.
type VoteRecord struct {
	VoterID  string `json:"voter_id"`
	TargetID string `json:"target_id"`
}

// VoteTally is the counted result of a day vote.
type VoteTally struct {
	Counts   map[string]int `json:"counts"`
	MaxVotes int            `json:"max_votes"`
	Leaders  []string       `json:"leaders"`
	Tie      bool           `json:"tie"`
	MayorID  string         `json:"mayor_id,omitempty"` // set when a living Mayor must break the tie
}

// CanProceed reports whether the vote names a single player to banish, or a
// Mayor who picks among the tied ones.
func (t VoteTally) CanProceed() bool {
	return t.MaxVotes > 0 && (len(t.Leaders) == 1 || (t.Tie && t.MayorID != ""))
}

func isMayor(p Player) bool {
	return p.HasAttribute(AttributeMayor) || p.Role.ID == RoleMayor
}

// TallyVotes counts the votes of living players for living targets. Silenced
// players still vote.
func (g GameState) TallyVotes(votes []VoteRecord) VoteTally {
	t := VoteTally{Counts: map[string]int{}}
	alive := func(id string) bool {
		i := findPlayer(g.Players, id)
		return i >= 0 && g.Players[i].IsAlive
	}
	for _, v := range votes {
		if !alive(v.VoterID) || !alive(v.TargetID) {
			continue
		}
		t.Counts[v.TargetID]++
	}

	for id, n := range t.Counts {
		switch {
		case n > t.MaxVotes:
			t.MaxVotes = n
			t.Leaders = []string{id}
		case n == t.MaxVotes:
			t.Leaders = append(t.Leaders, id)
		}
	}
	slices.SortFunc(t.Leaders, func(a, b string) int {
		pa, pb := g.Players[findPlayer(g.Players, a)], g.Players[findPlayer(g.Players, b)]
		return cmp.Or(cmp.Compare(pa.Name, pb.Name), cmp.Compare(pa.ID, pb.ID))
	})
	t.Tie = len(t.Leaders) > 1

	if t.Tie {
		for _, p := range g.Players {
			if p.IsAlive && isMayor(p) {
				t.MayorID = p.ID
				break
			}
		}
	}
	return t
}

// wardedToday reports whether a Lawyer's save from the last night took effect
// for this player.
func (g GameState) wardedToday(id string) (Player, bool) {
	lawyerID, ok := g.Metadata.Warded[id]
	if !ok {
		return Player{}, false
	}
	i := findPlayer(g.Players, lawyerID)
	if i < 0 {
		return Player{}, false
	}
	return g.Players[i], true
}

// Banish removes the chosen player by day vote, unless the Lawyer picked them
// the night before. It reports whether the player actually left the game.
func (g GameState) Banish(id string) (GameState, bool, error) {
	if g.Phase != PhaseDayVote {
		return g, false, illegal(g.Phase, "banish")
	}
	i, err := g.player(id)
	if err != nil {
		return g, false, err
	}
	if !g.Players[i].IsAlive {
		return g, false, fmt.Errorf("%w: %s", ErrPlayerDead, g.Players[i].Name)
	}

	next := g.clone()
	target := next.Players[i]
	if lawyer, ok := next.wardedToday(id); ok {
		next.DayLog = append(next.DayLog, fmt.Sprintf("%s was saved from banishment by %s (%s)", target.Name, lawyer.Name, lawyer.Role.Name))
		return next, false, nil
	}

	dr := ApplyDeaths(next.Players, []string{id})
	next.Players = dr.Players
	next.DayLog = append(next.DayLog, fmt.Sprintf("%s (%s) was banished", target.Name, target.Role.Name))
	for _, lid := range dr.LinkedDeaths {
		next.DayLog = append(next.DayLog, fmt.Sprintf("%s died of a broken bond", next.Players[findPlayer(next.Players, lid)].Name))
	}
	next.Metadata = deathEffects(next.Players, append([]string{id}, dr.LinkedDeaths...), next.Metadata, next.TurnNumber)
	return next, true, nil
}
