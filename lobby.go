package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrInvalidSetup = errors.New("invalid setup")

func (g GameState) lookupRole(reg *Registry, roleID string) (Role, error) {
	role, ok := reg.Role(roleID)
	if !ok {
		return Role{}, fmt.Errorf("%w: %q", ErrUnknownRole, roleID)
	}
	return role, nil
}

// AddPlayer seats a player with the given role.
func (g GameState) AddPlayer(reg *Registry, name, roleID string) (GameState, Player, error) {
	if g.Phase != PhaseSetup {
		return g, Player{}, illegal(g.Phase, "add player")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return g, Player{}, fmt.Errorf("%w: name is required", ErrInvalidSetup)
	}
	role, err := g.lookupRole(reg, roleID)
	if err != nil {
		return g, Player{}, err
	}

	next := g.clone()
	p := NewPlayer(name, role)
	next.Players = append(next.Players, p)
	return next, p, nil
}

func (g GameState) RemovePlayer(id string) (GameState, error) {
	if g.Phase != PhaseSetup {
		return g, illegal(g.Phase, "remove player")
	}
	i, err := g.player(id)
	if err != nil {
		return g, err
	}
	next := g.clone()
	next.Players = slices.Delete(next.Players, i, i+1)
	for j := range next.Players {
		if next.Players[j].LinkedTo == id {
			next.Players[j].LinkedTo = ""
		}
	}
	return next, nil
}

// DealRoles shuffles the role deck onto the named players, replacing anyone
// already seated.
func (g GameState) DealRoles(reg *Registry, names, roleIDs []string, rng Random) (GameState, error) {
	if g.Phase != PhaseSetup {
		return g, illegal(g.Phase, "deal roles")
	}
	if len(names) == 0 {
		return g, fmt.Errorf("%w: no players to deal to", ErrInvalidSetup)
	}
	if len(names) != len(roleIDs) {
		return g, fmt.Errorf("%w: %d players but %d roles", ErrInvalidSetup, len(names), len(roleIDs))
	}

	deck := make([]Role, len(roleIDs))
	for i, id := range roleIDs {
		role, err := g.lookupRole(reg, id)
		if err != nil {
			return g, err
		}
		deck[i] = role
	}
	for i := len(deck) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}

	next := g.clone()
	next.Players = make([]Player, 0, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return g, fmt.Errorf("%w: player %d has no name", ErrInvalidSetup, i+1)
		}
		next.Players = append(next.Players, NewPlayer(name, deck[i]))
	}
	return next, nil
}
