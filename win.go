package main

import "fmt"

// OutcomeStatus says whether the game goes on.
type OutcomeStatus string

const (
	StatusOngoing OutcomeStatus = "ONGOING"
	StatusWin     OutcomeStatus = "WIN"
)

// Outcome is the verdict of CheckWin.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Winner Faction       `json:"winner,omitempty"`
	Reason string        `json:"reason,omitempty"`
	Notes  []string      `json:"notes,omitempty"`
}

func (o Outcome) IsWin() bool { return o.Status == StatusWin }

func win(f Faction, format string, args ...any) Outcome {
	return Outcome{Status: StatusWin, Winner: f, Reason: fmt.Sprintf(format, args...)}
}

// CheckWin decides whether the game is over. The first matching rule wins.
func CheckWin(players []Player, meta GameMetadata, turn int) Outcome {
	out := checkWinRules(players, meta, turn)
	for _, p := range players {
		if p.IsAlive && p.Role.ID == RoleJester {
			out.Notes = append(out.Notes, fmt.Sprintf("%s (Jester) is alive: a Jester win requires manual adjudication", p.Name))
		}
	}
	return out
}

func checkWinRules(players []Player, meta GameMetadata, turn int) Outcome {
	alive := livingPlayers(players)
	if len(alive) == 0 {
		return win(FactionNeutral, "Everyone died - No winners")
	}

	if meta.InnkeeperDeadTurnNumber != nil && turn-*meta.InnkeeperDeadTurnNumber > 3 {
		return win(FactionWerewolves, "Innkeeper died 3 days ago - Evil wins!")
	}

	var evil, good []Player
	for _, p := range alive {
		if p.Role.IsEvil {
			evil = append(evil, p)
		} else {
			good = append(good, p)
		}
	}

	if len(alive) == 1 && alive[0].Role.ID == RoleWhiteWolf {
		return win(FactionNeutral, "%s (White Wolf) is the last survivor!", alive[0].Name)
	}

	if len(evil) == 1 && evil[0].Role.ID == RoleNosferatu && len(good) > 0 {
		return win(FactionVampires, "%s (Nosferatu) achieved their win condition!", evil[0].Name)
	}

	if len(alive) == 2 {
		for i, p := range alive {
			other := alive[1-i]
			if p.Role.ID == RoleAssassin && !other.Role.IsEvil {
				return win(FactionNeutral, "%s (Assassin) wins in 1v1 with %s!", p.Name, other.Name)
			}
		}
	}

	if len(evil) == 0 {
		return win(FactionVillage, "All evil players have been eliminated!")
	}

	if len(evil) >= len(good) {
		var wolves, vampires int
		for _, p := range evil {
			switch p.Role.Faction {
			case FactionWerewolves:
				wolves++
			case FactionVampires:
				vampires++
			}
		}
		if vampires > wolves {
			return win(FactionVampires, "Vampires equal or outnumber the good players!")
		}
		return win(FactionWerewolves, "Evil equals or outnumbers the good players!")
	}

	return Outcome{Status: StatusOngoing}
}

// Summary counts living players for the moderator display.
type Summary struct {
	Alive    int             `json:"alive"`
	Dead     int             `json:"dead"`
	Evil     int             `json:"evil"`
	Good     int             `json:"good"`
	Factions map[Faction]int `json:"factions"`
}

func Summarize(players []Player) Summary {
	s := Summary{Factions: map[Faction]int{}}
	for _, p := range players {
		if !p.IsAlive {
			s.Dead++
			continue
		}
		s.Alive++
		if p.Role.IsEvil {
			s.Evil++
		} else {
			s.Good++
		}
		s.Factions[p.Role.Faction]++
	}
	return s
}
