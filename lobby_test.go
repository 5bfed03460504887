package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPlayer(t *testing.T) {
	reg := DefaultRegistry()
	g := NewGame("g")

	g, p, err := g.AddPlayer(reg, "  Ann ", "seer")
	require.NoError(t, err)
	assert.Equal(t, "Ann", p.Name)
	assert.Equal(t, "seer", p.Role.ID)
	assert.True(t, p.IsAlive)
	require.Len(t, g.Players, 1)

	_, _, err = g.AddPlayer(reg, "   ", "seer")
	assert.ErrorIs(t, err, ErrInvalidSetup)

	_, _, err = g.AddPlayer(reg, "Ben", "necromancer")
	assert.ErrorIs(t, err, ErrUnknownRole)

	g, _, err = g.AddPlayer(reg, "Olaf", "old_man")
	require.NoError(t, err)
	assert.Equal(t, 2, named(t, g.Players, "Olaf").Metadata.OldManLives)

	g, err = g.StartGame()
	require.NoError(t, err)
	_, _, err = g.AddPlayer(reg, "Late", "villager")
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestRemovePlayerClearsLinks(t *testing.T) {
	g := NewGame("g")
	g.Players = table(t, "Ann", "villager", "Ben", "villager")
	ann, ben := g.Players[0].ID, g.Players[1].ID
	g.Players[1].LinkedTo = ann

	next, err := g.RemovePlayer(ann)
	require.NoError(t, err)
	require.Len(t, next.Players, 1)
	assert.Equal(t, ben, next.Players[0].ID)
	assert.Empty(t, next.Players[0].LinkedTo)
	assert.Len(t, g.Players, 2)

	_, err = next.RemovePlayer(ann)
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestDealRolesShufflesDeck(t *testing.T) {
	reg := DefaultRegistry()
	g := NewGame("g")
	g.Players = table(t, "Old", "villager")

	// Intn always 0: [werewolf seer villager] -> [seer villager werewolf]
	g, err := g.DealRoles(reg, []string{"x", "y", "z"}, []string{"werewolf", "seer", "villager"}, newMockRandom())
	require.NoError(t, err)
	require.Len(t, g.Players, 3)
	assert.Equal(t, "seer", named(t, g.Players, "x").Role.ID)
	assert.Equal(t, "villager", named(t, g.Players, "y").Role.ID)
	assert.Equal(t, "werewolf", named(t, g.Players, "z").Role.ID)
}

func TestDealRolesValidation(t *testing.T) {
	reg := DefaultRegistry()
	g := NewGame("g")

	tests := []struct {
		name    string
		names   []string
		roleIDs []string
		err     error
	}{
		{"no players", nil, nil, ErrInvalidSetup},
		{"count mismatch", []string{"a", "b"}, []string{"seer"}, ErrInvalidSetup},
		{"unknown role", []string{"a"}, []string{"necromancer"}, ErrUnknownRole},
		{"blank name", []string{"a", " "}, []string{"seer", "villager"}, ErrInvalidSetup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.DealRoles(reg, tt.names, tt.roleIDs, newMockRandom())
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
