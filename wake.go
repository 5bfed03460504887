package main

import (
	"cmp"
	"fmt"
	"slices"
)

// WakeUnit is one step of the night: a single player, or a pack of players
// sharing a faction and wake order who act together.
type WakeUnit struct {
	Role    Role     `json:"role"`
	Player  Player   `json:"player"` // lead; first member for packs
	Members []Player `json:"members,omitempty"`
}

func (u WakeUnit) IsPack() bool { return len(u.Members) > 1 }

// Label is what the moderator calls out, e.g. "Werewolves Pack" or "Seer (Alice)".
func (u WakeUnit) Label() string {
	if u.IsPack() {
		return fmt.Sprintf("%s Pack", u.Role.Faction)
	}
	return fmt.Sprintf("%s (%s)", u.Role.Name, u.Player.Name)
}

// Blocked reports whether the unit has lost its action to an ability block.
// A pack is blocked only when every member is.
func (u WakeUnit) Blocked() bool {
	if !u.IsPack() {
		return u.Player.IsAbilityBlocked
	}
	for _, m := range u.Members {
		if !m.IsAbilityBlocked {
			return false
		}
	}
	return true
}

func (u WakeUnit) sortName() string {
	if u.IsPack() {
		return u.Label()
	}
	return u.Role.Name
}

func comparePlayers(a, b Player) int {
	return cmp.Or(
		cmp.Compare(a.Role.Name, b.Role.Name),
		cmp.Compare(a.Name, b.Name),
		cmp.Compare(a.ID, b.ID),
	)
}

type packKey struct {
	faction   Faction
	wakeOrder int
}

// SequenceWake orders the living players into wake units. The result depends
// only on the set of players passed in, not on their order.
func SequenceWake(living []Player) []WakeUnit {
	packs := map[packKey][]Player{}
	var singles []Player
	for _, p := range living {
		if !p.IsAlive || !p.Role.Wakes() {
			continue
		}
		if p.Role.Pack != PackNone {
			k := packKey{p.Role.Faction, p.Role.WakeOrder}
			packs[k] = append(packs[k], p)
			continue
		}
		singles = append(singles, p)
	}

	var units []WakeUnit
	for _, members := range packs {
		if len(members) == 1 {
			singles = append(singles, members[0])
			continue
		}
		members = slices.Clone(members)
		slices.SortFunc(members, comparePlayers)
		units = append(units, WakeUnit{Role: members[0].Role, Player: members[0], Members: members})
	}
	for _, p := range singles {
		units = append(units, WakeUnit{Role: p.Role, Player: p})
	}

	slices.SortFunc(units, func(a, b WakeUnit) int {
		return cmp.Or(
			cmp.Compare(a.Role.WakeOrder, b.Role.WakeOrder),
			cmp.Compare(a.sortName(), b.sortName()),
			cmp.Compare(a.Player.Name, b.Player.Name),
			cmp.Compare(a.Player.ID, b.Player.ID),
		)
	})
	return units
}
