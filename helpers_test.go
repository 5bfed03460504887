package main

import (
	"sync"
	"testing"
	"time"
)

// ============================================================================
// Test doubles
// ============================================================================

// mockRandom returns queued results from Intn, or 0 once the queue is empty
type mockRandom struct {
	mu          sync.Mutex
	IntnResults []int
	intnIndex   int
}

var _ Random = (*mockRandom)(nil)

func newMockRandom(values ...int) *mockRandom {
	return &mockRandom{IntnResults: values}
}

func (r *mockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.intnIndex >= len(r.IntnResults) {
		return 0
	}
	result := r.IntnResults[r.intnIndex]
	r.intnIndex++
	return result
}

func (r *mockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.IntnResults = append(r.IntnResults, values...)
}

// mockClock is a settable Clock
type mockClock struct {
	mu          sync.Mutex
	CurrentTime time.Time
}

var _ Clock = (*mockClock)(nil)

func newMockClock(t time.Time) *mockClock {
	return &mockClock{CurrentTime: t}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CurrentTime
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CurrentTime = c.CurrentTime.Add(d)
}

var testEpoch = time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)

// ============================================================================
// Table helpers
// ============================================================================

// table seats players from alternating name, role id pairs
func table(t testing.TB, pairs ...string) []Player {
	t.Helper()
	if len(pairs)%2 != 0 {
		t.Fatalf("table: odd number of arguments")
	}
	reg := DefaultRegistry()
	var players []Player
	for i := 0; i < len(pairs); i += 2 {
		role, ok := reg.Role(pairs[i+1])
		if !ok {
			t.Fatalf("table: unknown role %q", pairs[i+1])
		}
		players = append(players, NewPlayer(pairs[i], role))
	}
	return players
}

// named returns the player called name
func named(t testing.TB, players []Player, name string) Player {
	t.Helper()
	for _, p := range players {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("no player named %q", name)
	return Player{}
}

func idOf(t testing.TB, players []Player, name string) string {
	t.Helper()
	return named(t, players, name).ID
}

// act records actor targeting target with the actor's default action
func act(actor, target Player) NightActionRecord {
	return NightActionRecord{RoleID: actor.Role.ID, ActorID: actor.ID, TargetID: target.ID, Timestamp: testEpoch}
}

// nightGame is a game in its first night with the given table
func nightGame(t testing.TB, players []Player) GameState {
	t.Helper()
	g := NewGame("test-game")
	g.Players = players
	g, err := g.StartGame()
	if err != nil {
		t.Fatalf("start game: %v", err)
	}
	return g
}

func names(players []Player, ids []string) []string {
	var out []string
	for _, id := range ids {
		if i := findPlayer(players, id); i >= 0 {
			out = append(out, players[i].Name)
		}
	}
	return out
}
