package main

import (
	"math/rand/v2"
	"slices"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(units []WakeUnit) []string {
	var out []string
	for _, u := range units {
		out = append(out, u.Label())
	}
	return out
}

func TestSequenceWakeGroupsPack(t *testing.T) {
	players := table(t,
		"Wendy", "werewolf",
		"Alan", "alpha_wolf",
		"Sam", "seer",
		"Hilda", "hag",
		"Vic", "villager",
	)

	units := SequenceWake(players)
	require.Equal(t, []string{"Hag (Hilda)", "Seer (Sam)", "Werewolves Pack"}, labels(units))

	pack := units[2]
	assert.True(t, pack.IsPack())
	require.Len(t, pack.Members, 2)
	// members sorted by role name: Alpha Wolf before Werewolf
	assert.Equal(t, "Alan", pack.Members[0].Name)
	assert.Equal(t, "Wendy", pack.Members[1].Name)
	assert.Equal(t, pack.Members[0].ID, pack.Player.ID)
}

func TestSequenceWakeSingleWolfIsNotAPack(t *testing.T) {
	players := table(t, "Wendy", "werewolf", "Vic", "villager")
	units := SequenceWake(players)
	require.Len(t, units, 1)
	assert.False(t, units[0].IsPack())
	assert.Equal(t, "Werewolf (Wendy)", units[0].Label())
}

func TestSequenceWakeSkipsDeadAndPassive(t *testing.T) {
	players := table(t,
		"Sam", "seer",
		"Mia", "miner",
		"Vic", "villager",
		"Bea", "bodyguard",
	)
	players[0].IsAlive = false

	units := SequenceWake(players)
	assert.Equal(t, []string{"Bodyguard (Bea)"}, labels(units))
}

func TestSequenceWakeBreaksTiesByName(t *testing.T) {
	// Dark Seer, Little Girl and the wolf pack all wake at 8
	players := table(t,
		"Wendy", "werewolf",
		"Will", "werewolf",
		"Lily", "little_girl",
		"Dora", "dark_seer",
	)
	assert.Equal(t, []string{"Dark Seer (Dora)", "Little Girl (Lily)", "Werewolves Pack"}, labels(SequenceWake(players)))
}

func TestSequenceWakeSeparatesFamilies(t *testing.T) {
	players := table(t,
		"Wendy", "werewolf",
		"Will", "werewolf",
		"Vera", "vampire",
		"Nora", "nosferatu",
	)
	units := SequenceWake(players)
	assert.Equal(t, []string{"Werewolves Pack", "Vampires Pack"}, labels(units))
}

func TestWakeUnitBlockedOnlyWhenWholePackBlocked(t *testing.T) {
	players := table(t, "Wendy", "werewolf", "Will", "werewolf")
	players[0].IsAbilityBlocked = true

	units := SequenceWake(players)
	require.Len(t, units, 1)
	assert.False(t, units[0].Blocked())

	players[1].IsAbilityBlocked = true
	units = SequenceWake(players)
	assert.True(t, units[0].Blocked())
}

// TestSequenceWakeIgnoresInputOrder shuffles the table and expects the same
// sequence every time.
func TestSequenceWakeIgnoresInputOrder(t *testing.T) {
	players := table(t,
		"Wendy", "werewolf",
		"Will", "white_wolf",
		"Alan", "alpha_wolf",
		"Vera", "vampire",
		"Nora", "nosferatu",
		"Sam", "seer",
		"Pia", "prophet",
		"Hilda", "hag",
		"Bea", "bodyguard",
		"Gus", "gypsy",
		"Cleo", "cupid",
	)
	want := SequenceWake(players)

	f := func(seed uint64) bool {
		shuffled := slices.Clone(players)
		r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got := SequenceWake(shuffled)
		if len(got) != len(want) {
			t.Logf("seed %d: %d units, want %d", seed, len(got), len(want))
			return false
		}
		for i := range got {
			if got[i].Label() != want[i].Label() || got[i].Player.ID != want[i].Player.ID {
				t.Logf("seed %d: unit %d is %s, want %s", seed, i, got[i].Label(), want[i].Label())
				return false
			}
		}
		return true
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 5}); err != nil {
		t.Error(err)
	}
}
