package main

import (
	"slices"

	"github.com/google/uuid"
)

// Attribute tags a moderator can toggle on a player.
const (
	AttributeMayor = "Mayor"
)

// PlayerMetadata holds per-player counters that outlive a single night.
type PlayerMetadata struct {
	OldManLives         int            `json:"old_man_lives,omitempty"`
	HeroShieldActive    bool           `json:"hero_shield_active,omitempty"`
	UsedAbilities       map[string]int `json:"used_abilities,omitempty"`
	LastProtectedPlayer string         `json:"last_protected_player,omitempty"`
}

// Player is a seat at the table. Values are copied, never shared.
type Player struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	Role                Role           `json:"role"`
	IsAlive             bool           `json:"is_alive"`
	IsSilenced          bool           `json:"is_silenced"`
	IsAbilityBlocked    bool           `json:"is_ability_blocked"`
	IsProtectedPhysical bool           `json:"is_protected_physical"`
	IsProtectedWerewolf bool           `json:"is_protected_werewolf"`
	LinkedTo            string         `json:"linked_to,omitempty"`
	Attributes          []string       `json:"attributes,omitempty"`
	Metadata            PlayerMetadata `json:"metadata"`
}

// NewPlayer seats a living player with the starting counters of their role.
func NewPlayer(name string, role Role) Player {
	p := Player{
		ID:      uuid.NewString(),
		Name:    name,
		Role:    role,
		IsAlive: true,
	}
	if role.HasTrait(TraitShield) {
		p.Metadata.HeroShieldActive = true
	}
	if role.HasTrait(TraitExtraLife) {
		p.Metadata.OldManLives = 2
	}
	return p
}

func (p Player) HasAttribute(attr string) bool {
	return slices.Contains(p.Attributes, attr)
}

// clone returns a deep copy so callers can mutate it freely.
func (p Player) clone() Player {
	p.Attributes = slices.Clone(p.Attributes)
	if p.Metadata.UsedAbilities != nil {
		used := make(map[string]int, len(p.Metadata.UsedAbilities))
		for k, v := range p.Metadata.UsedAbilities {
			used[k] = v
		}
		p.Metadata.UsedAbilities = used
	}
	return p
}

func clonePlayers(players []Player) []Player {
	if players == nil {
		return nil
	}
	out := make([]Player, len(players))
	for i, p := range players {
		out[i] = p.clone()
	}
	return out
}

// findPlayer returns the index of the player with id, or -1.
func findPlayer(players []Player, id string) int {
	if id == "" {
		return -1
	}
	for i := range players {
		if players[i].ID == id {
			return i
		}
	}
	return -1
}

func livingPlayers(players []Player) []Player {
	var out []Player
	for _, p := range players {
		if p.IsAlive {
			out = append(out, p)
		}
	}
	return out
}
