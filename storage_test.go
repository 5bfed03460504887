package main

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"
)

// StoreSuite holds the behaviour every Store must share. Backend suites embed
// it and set store in SetupTest.
type StoreSuite struct {
	suite.Suite
	store Store
	ctx   context.Context
}

// sampleGame is a night in progress with logs, actions and carried flags
func (s *StoreSuite) sampleGame(id string, updated time.Time) GameState {
	g := nightGame(s.T(), table(s.T(),
		"Hilda", "hag",
		"Lou", "lawyer",
		"Olaf", "old_man",
		"Wendy", "werewolf",
		"Ann", "villager",
	))
	g.ID = id
	g, err := g.RecordAction(idOf(s.T(), g.Players, "Ann"), "", testEpoch)
	s.Require().NoError(err)
	g, err = g.SetAttribute(idOf(s.T(), g.Players, "Ann"), AttributeMayor, true)
	s.Require().NoError(err)
	g.Players[findPlayer(g.Players, idOf(s.T(), g.Players, "Ann"))].LinkedTo = idOf(s.T(), g.Players, "Lou")
	g.DayLog = []string{"yesterday"}
	turn := 1
	g.Metadata.InnkeeperDeadTurnNumber = &turn
	g.LastNightDeaths = []string{idOf(s.T(), g.Players, "Olaf")}
	g.UpdatedAt = updated
	return g
}

func (s *StoreSuite) finishedGame(id string, updated time.Time) GameState {
	g := NewGame(id)
	g.Phase = PhaseGameOver
	g.Winner = FactionVillage
	g.WinReason = "All evil players have been eliminated!"
	g.UpdatedAt = updated
	return g
}

func (s *StoreSuite) TestSaveAndLoadGame() {
	want := s.sampleGame("game-1", testEpoch)
	s.Require().NoError(s.store.SaveGame(s.ctx, want))

	got, err := s.store.LoadGame(s.ctx, "game-1")
	s.Require().NoError(err)

	s.True(want.UpdatedAt.Equal(got.UpdatedAt), "updated_at %v != %v", want.UpdatedAt, got.UpdatedAt)
	s.Require().Len(got.NightActions, len(want.NightActions))
	for i := range want.NightActions {
		s.True(want.NightActions[i].Timestamp.Equal(got.NightActions[i].Timestamp))
		got.NightActions[i].Timestamp = want.NightActions[i].Timestamp
	}
	got.UpdatedAt = want.UpdatedAt
	s.Equal(want, got)
}

func (s *StoreSuite) TestSaveOverwrites() {
	g := s.sampleGame("game-1", testEpoch)
	s.Require().NoError(s.store.SaveGame(s.ctx, g))

	g, err := g.SkipUnit()
	s.Require().NoError(err)
	g.Players = g.Players[:2]
	s.Require().NoError(s.store.SaveGame(s.ctx, g))

	got, err := s.store.LoadGame(s.ctx, "game-1")
	s.Require().NoError(err)
	s.Len(got.Players, 2)
	s.Equal(g.NightLog, got.NightLog)
}

func (s *StoreSuite) TestLoadGameNotFound() {
	_, err := s.store.LoadGame(s.ctx, "nonexistent")
	s.ErrorIs(err, ErrGameNotFound)

	_, err = s.store.LatestGame(s.ctx)
	s.ErrorIs(err, ErrGameNotFound)
}

func (s *StoreSuite) TestLatestGame() {
	s.Require().NoError(s.store.SaveGame(s.ctx, s.finishedGame("old", testEpoch)))
	s.Require().NoError(s.store.SaveGame(s.ctx, s.finishedGame("new", testEpoch.Add(time.Hour))))

	g, err := s.store.LatestGame(s.ctx)
	s.Require().NoError(err)
	s.Equal("new", g.ID)
}

func (s *StoreSuite) TestDeleteGame() {
	s.Require().NoError(s.store.SaveGame(s.ctx, s.sampleGame("game-1", testEpoch)))
	s.Require().NoError(s.store.DeleteGame(s.ctx, "game-1"))

	_, err := s.store.LoadGame(s.ctx, "game-1")
	s.ErrorIs(err, ErrGameNotFound)
}

func (s *StoreSuite) TestPruneFinished() {
	ongoing := s.sampleGame("ongoing", testEpoch)
	for _, g := range []GameState{
		s.finishedGame("finished-old", testEpoch),
		s.finishedGame("finished-new", testEpoch.Add(48*time.Hour)),
		s.finishedGame("current", testEpoch),
		ongoing,
	} {
		s.Require().NoError(s.store.SaveGame(s.ctx, g))
	}

	n, err := s.store.PruneFinished(s.ctx, testEpoch.Add(24*time.Hour), "current")
	s.Require().NoError(err)
	s.Equal(1, n)

	_, err = s.store.LoadGame(s.ctx, "finished-old")
	s.ErrorIs(err, ErrGameNotFound)
	for _, id := range []string{"finished-new", "current", "ongoing"} {
		_, err := s.store.LoadGame(s.ctx, id)
		s.NoError(err, id)
	}
}

func (s *StoreSuite) TestSessions() {
	ok, err := s.store.HasSession(s.ctx, "tok")
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.store.CreateSession(s.ctx, "tok"))
	ok, err = s.store.HasSession(s.ctx, "tok")
	s.Require().NoError(err)
	s.True(ok)

	s.Require().NoError(s.store.DeleteSession(s.ctx, "tok"))
	ok, err = s.store.HasSession(s.ctx, "tok")
	s.Require().NoError(err)
	s.False(ok)
}
