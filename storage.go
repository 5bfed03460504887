package main

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrGameNotFound = errors.New("game not found")

// Store persists game snapshots and moderator sessions.
type Store interface {
	SaveGame(ctx context.Context, g GameState) error
	LoadGame(ctx context.Context, id string) (GameState, error)
	// LatestGame returns the most recently saved game.
	LatestGame(ctx context.Context) (GameState, error)
	DeleteGame(ctx context.Context, id string) error
	// PruneFinished deletes finished games last saved before cutoff, except keep.
	PruneFinished(ctx context.Context, cutoff time.Time, keep string) (int, error)

	CreateSession(ctx context.Context, token string) error
	HasSession(ctx context.Context, token string) (bool, error)
	DeleteSession(ctx context.Context, token string) error

	Close() error
}

// rehydrateRoles swaps every stored role for the registry's current entry so
// a loaded game never carries a role the registry does not know.
func rehydrateRoles(reg *Registry, g *GameState) error {
	for i := range g.Players {
		role, ok := reg.Role(g.Players[i].Role.ID)
		if !ok {
			return fmt.Errorf("game %s player %s: %w: %q", g.ID, g.Players[i].Name, ErrUnknownRole, g.Players[i].Role.ID)
		}
		g.Players[i].Role = role
	}
	return nil
}
