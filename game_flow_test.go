package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Night loop
// ============================================================================

func TestStartGameOpensFirstNight(t *testing.T) {
	g := NewGame("")
	assert.NotEmpty(t, g.ID)
	assert.Equal(t, PhaseSetup, g.Phase)

	_, err := g.StartGame()
	assert.ErrorIs(t, err, ErrIllegalTransition, "no players seated")

	g.Players = table(t, "Hilda", "hag", "Wendy", "werewolf", "Vic", "villager")
	next, err := g.StartGame()
	require.NoError(t, err)

	assert.Equal(t, PhaseNight, next.Phase)
	assert.Equal(t, 1, next.TurnNumber)
	assert.Equal(t, "hag", next.Metadata.ActiveRoleID)
	unit, ok := next.CurrentUnit()
	require.True(t, ok)
	assert.Equal(t, "Hag (Hilda)", unit.Label())

	// the receiver is never modified
	assert.Equal(t, PhaseSetup, g.Phase)

	_, err = next.StartGame()
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestNightWithHagBlock(t *testing.T) {
	g := nightGame(t, table(t,
		"Hilda", "hag",
		"Sam", "seer",
		"Wendy", "werewolf",
		"Will", "werewolf",
		"Vic", "villager",
	))
	sam, wendy, vic := idOf(t, g.Players, "Sam"), idOf(t, g.Players, "Wendy"), idOf(t, g.Players, "Vic")

	g, err := g.RecordAction(sam, "", testEpoch)
	require.NoError(t, err)
	assert.True(t, named(t, g.Players, "Sam").IsAbilityBlocked)
	assert.Equal(t, "Hag (Hilda) - block Sam", g.NightLog[0])

	// the blocked Seer is passed over without an action
	unit, _ := g.CurrentUnit()
	require.True(t, unit.Blocked())
	g, err = g.RecordAction(wendy, "", testEpoch)
	require.NoError(t, err)
	assert.Equal(t, "Seer (Sam) - BLOCKED by Hag", g.NightLog[1])
	require.Len(t, g.NightActions, 1)

	_, err = g.EndNight(newMockRandom())
	assert.ErrorIs(t, err, ErrNightInProgress)

	g, err = g.RecordAction(vic, "", testEpoch)
	require.NoError(t, err)
	assert.Equal(t, "Werewolves Pack - kill Vic", g.NightLog[2])
	assert.True(t, g.NightComplete())
	assert.Empty(t, g.Metadata.ActiveRoleID)

	g, err = g.EndNight(newMockRandom())
	require.NoError(t, err)
	assert.Equal(t, PhaseDayAnnounce, g.Phase)
	assert.Equal(t, []string{vic}, g.LastNightDeaths)
	assert.False(t, named(t, g.Players, "Vic").IsAlive)
	assert.Contains(t, g.NightLog, "Vic died during the night")
}

func TestRecordActionValidatesTargets(t *testing.T) {
	g := nightGame(t, table(t, "Sam", "seer", "Vic", "villager"))

	_, err := g.RecordAction("ghost", "", testEpoch)
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	_, err = g.RecordAction(idOf(t, g.Players, "Vic"), "ghost", testEpoch)
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	g, err = g.RecordAction(idOf(t, g.Players, "Vic"), "", testEpoch)
	require.NoError(t, err)
	_, err = g.RecordAction(idOf(t, g.Players, "Vic"), "", testEpoch)
	assert.ErrorIs(t, err, ErrIllegalTransition, "no unit left")
}

func TestRecordActionStoresLinkPair(t *testing.T) {
	g := nightGame(t, table(t, "Cleo", "cupid", "Ann", "villager", "Ben", "villager"))
	ann, ben := idOf(t, g.Players, "Ann"), idOf(t, g.Players, "Ben")

	g, err := g.RecordAction(ann, ben, testEpoch)
	require.NoError(t, err)
	require.Len(t, g.NightActions, 1)
	assert.Equal(t, ActionLink, g.NightActions[0].Kind)
	assert.Equal(t, ben, g.NightActions[0].SecondTargetID)
	assert.Equal(t, "Cupid (Cleo) - link Ann & Ben", g.NightLog[0])

	g, err = g.EndNight(newMockRandom())
	require.NoError(t, err)
	assert.Equal(t, ben, named(t, g.Players, "Ann").LinkedTo)
}

func TestRecordActionPackActsThroughUnblockedMember(t *testing.T) {
	g := nightGame(t, table(t, "Hilda", "hag", "Al", "alpha_wolf", "Wendy", "werewolf", "Vic", "villager"))
	al, wendy, vic := idOf(t, g.Players, "Al"), idOf(t, g.Players, "Wendy"), idOf(t, g.Players, "Vic")

	g, err := g.RecordAction(al, "", testEpoch)
	require.NoError(t, err)
	unit, ok := g.CurrentUnit()
	require.True(t, ok)
	require.Equal(t, al, unit.Player.ID)
	require.False(t, unit.Blocked())

	g, err = g.RecordAction(vic, "", testEpoch)
	require.NoError(t, err)
	require.Len(t, g.NightActions, 2)
	rec := g.NightActions[1]
	assert.Equal(t, wendy, rec.ActorID)
	assert.Equal(t, "werewolf", rec.RoleID)
	assert.Equal(t, named(t, g.Players, "Wendy").Role.NightAction, rec.Kind)
}

func TestSkipUnit(t *testing.T) {
	g := nightGame(t, table(t, "Sam", "seer", "Vic", "villager"))
	g, err := g.SkipUnit()
	require.NoError(t, err)
	assert.Equal(t, []string{"Seer (Sam) - Skipped"}, g.NightLog)

	_, err = g.SkipUnit()
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestEndNightLinkedDeathAndInnkeeper(t *testing.T) {
	g := nightGame(t, table(t, "Wendy", "werewolf", "Inga", "innkeeper", "Ann", "villager", "Ben", "villager"))
	inga := idOf(t, g.Players, "Inga")
	g.Players[findPlayer(g.Players, inga)].LinkedTo = idOf(t, g.Players, "Ann")

	g, err := g.RecordAction(inga, "", testEpoch)
	require.NoError(t, err)
	g, err = g.EndNight(newMockRandom())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Inga", "Ann"}, names(g.Players, g.LastNightDeaths))
	assert.Contains(t, g.NightLog, "Ann died of a broken bond")
	require.NotNil(t, g.Metadata.InnkeeperDeadTurnNumber)
	assert.Equal(t, 1, *g.Metadata.InnkeeperDeadTurnNumber)
}

func TestEndNightCarriesLeperFlag(t *testing.T) {
	g := nightGame(t, table(t, "Lep", "leper", "Wendy", "werewolf", "Ann", "villager", "Ben", "villager"))

	// the Leper wakes first with no action
	g, err := g.SkipUnit()
	require.NoError(t, err)
	g, err = g.RecordAction(idOf(t, g.Players, "Lep"), "", testEpoch)
	require.NoError(t, err)
	g, err = g.EndNight(newMockRandom())
	require.NoError(t, err)
	assert.True(t, g.Metadata.SkipNextWolfKill)
}

func TestEndNightLawyerWardNeedsAWorkingAbility(t *testing.T) {
	tests := []struct {
		name     string
		disabled bool
		banished bool
	}{
		{"ward holds", false, false},
		{"good abilities disabled", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := nightGame(t, table(t, "Lou", "lawyer", "Wendy", "werewolf", "Ann", "villager", "Ben", "villager"))
			g.Metadata.AllGoodAbilitiesDisabled = tt.disabled
			ann, ben := idOf(t, g.Players, "Ann"), idOf(t, g.Players, "Ben")

			g, err := g.RecordAction(ann, "", testEpoch)
			require.NoError(t, err)
			g, err = g.RecordAction(ben, "", testEpoch)
			require.NoError(t, err)
			g, err = g.EndNight(newMockRandom())
			require.NoError(t, err)
			if tt.disabled {
				assert.Contains(t, g.NightLog, "Lou (Lawyer) cannot act: good abilities are disabled")
				assert.Empty(t, g.Metadata.Warded)
			} else {
				assert.Equal(t, map[string]string{ann: idOf(t, g.Players, "Lou")}, g.Metadata.Warded)
			}

			g, err = g.ContinueToVote()
			require.NoError(t, err)
			g, banished, err := g.Banish(ann)
			require.NoError(t, err)
			assert.Equal(t, tt.banished, banished)
			assert.Equal(t, !tt.banished, named(t, g.Players, "Ann").IsAlive)

			// the ward lasts one day
			g, err = g.StartNextNight()
			require.NoError(t, err)
			assert.Empty(t, g.Metadata.Warded)
		})
	}
}

// ============================================================================
// Day transitions
// ============================================================================

func TestDayLoopResetsNightFlags(t *testing.T) {
	g := nightGame(t, table(t, "Dee", "dentist", "Bea", "bodyguard", "Wendy", "werewolf", "Vic", "villager", "Val", "villager"))
	vic := idOf(t, g.Players, "Vic")

	for !g.NightComplete() {
		var err error
		g, err = g.RecordAction(vic, "", testEpoch)
		require.NoError(t, err)
	}
	g, err := g.EndNight(newMockRandom())
	require.NoError(t, err)
	require.Empty(t, g.LastNightDeaths)
	v := named(t, g.Players, "Vic")
	require.True(t, v.IsSilenced)
	require.True(t, v.IsProtectedPhysical)

	_, err = g.StartNextNight()
	assert.ErrorIs(t, err, ErrIllegalTransition, "must vote first")

	g, err = g.ContinueToVote()
	require.NoError(t, err)
	assert.Equal(t, PhaseDayVote, g.Phase)

	g, err = g.StartNextNight()
	require.NoError(t, err)
	assert.Equal(t, PhaseNight, g.Phase)
	assert.Equal(t, 2, g.TurnNumber)
	assert.Empty(t, g.NightActions)
	assert.Empty(t, g.NightLog)
	for _, p := range g.Players {
		assert.False(t, p.IsSilenced, p.Name)
		assert.False(t, p.IsProtectedPhysical, p.Name)
		assert.False(t, p.IsAbilityBlocked, p.Name)
	}
}

func TestEndGame(t *testing.T) {
	g := nightGame(t, table(t, "Wendy", "werewolf", "Vic", "villager"))

	_, err := g.EndGame(Outcome{Status: StatusOngoing})
	assert.ErrorIs(t, err, ErrIllegalTransition)

	g, err = g.EndGame(Outcome{Status: StatusWin, Winner: FactionWerewolves, Reason: "test"})
	require.NoError(t, err)
	assert.Equal(t, PhaseGameOver, g.Phase)
	assert.Equal(t, FactionWerewolves, g.Winner)
	assert.Equal(t, "test", g.WinReason)

	_, err = g.EndGame(Outcome{Status: StatusWin, Winner: FactionVillage})
	assert.ErrorIs(t, err, ErrIllegalTransition)

	r := g.Reset()
	assert.Equal(t, PhaseSetup, r.Phase)
	assert.NotEqual(t, g.ID, r.ID)
	assert.Empty(t, r.Players)
}

// ============================================================================
// Moderator overrides
// ============================================================================

func TestKillPlayerOverride(t *testing.T) {
	g := nightGame(t, table(t, "Olaf", "old_man", "Ann", "villager", "Ben", "villager"))
	olaf := idOf(t, g.Players, "Olaf")

	g, err := g.KillPlayer(olaf)
	require.NoError(t, err)
	assert.True(t, named(t, g.Players, "Olaf").IsAlive)
	assert.Contains(t, g.NightLog, "Olaf (Old Man) lost a life (1 left)")

	g, err = g.KillPlayer(olaf)
	require.NoError(t, err)
	assert.False(t, named(t, g.Players, "Olaf").IsAlive)
	assert.Contains(t, g.NightLog, "Olaf was killed by the moderator")
	assert.True(t, g.Metadata.AllGoodAbilitiesDisabled)

	// killing the dead is a no-op
	again, err := g.KillPlayer(olaf)
	require.NoError(t, err)
	assert.Equal(t, g.NightLog, again.NightLog)

	_, err = g.KillPlayer("ghost")
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestKillPlayerTakesLinkedPartner(t *testing.T) {
	g := nightGame(t, table(t, "Ann", "villager", "Ben", "villager", "Wendy", "werewolf"))
	ann, ben := idOf(t, g.Players, "Ann"), idOf(t, g.Players, "Ben")
	g.Players[findPlayer(g.Players, ann)].LinkedTo = ben

	g, err := g.KillPlayer(ann)
	require.NoError(t, err)
	assert.False(t, named(t, g.Players, "Ben").IsAlive)
	assert.Contains(t, g.NightLog, "Ben died of a broken bond")
}

func TestRevivePlayerAndOverridePhases(t *testing.T) {
	setup := NewGame("g")
	setup.Players = table(t, "Ann", "villager")
	_, err := setup.KillPlayer(setup.Players[0].ID)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	g, err := setup.StartGame()
	require.NoError(t, err)
	ann := g.Players[0].ID
	g, err = g.KillPlayer(ann)
	require.NoError(t, err)
	g, err = g.RevivePlayer(ann)
	require.NoError(t, err)
	assert.True(t, g.Players[0].IsAlive)
	assert.Contains(t, g.NightLog, "Ann was revived by the moderator")
}

func TestSetAttribute(t *testing.T) {
	g := NewGame("g")
	g.Players = table(t, "Ann", "villager")
	ann := g.Players[0].ID

	g, err := g.SetAttribute(ann, AttributeMayor, true)
	require.NoError(t, err)
	g, err = g.SetAttribute(ann, AttributeMayor, true)
	require.NoError(t, err)
	assert.Equal(t, []string{AttributeMayor}, g.Players[0].Attributes)

	g, err = g.SetAttribute(ann, AttributeMayor, false)
	require.NoError(t, err)
	assert.False(t, g.Players[0].HasAttribute(AttributeMayor))

	_, err = g.SetAttribute("ghost", AttributeMayor, true)
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}
