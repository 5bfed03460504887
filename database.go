package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore keeps games in sqlite.
type SQLStore struct {
	db  *sqlx.DB
	reg *Registry
}

var _ Store = (*SQLStore)(nil)

type gameRow struct {
	ID              string    `db:"id"`
	Phase           string    `db:"phase"`
	TurnNumber      int       `db:"turn_number"`
	Winner          string    `db:"winner"`
	WinReason       string    `db:"win_reason"`
	Metadata        string    `db:"metadata"`
	LastNightDeaths string    `db:"last_night_deaths"`
	UpdatedAt       time.Time `db:"updated_at"`
}

type playerRow struct {
	GameID              string `db:"game_id"`
	Seat                int    `db:"seat"`
	ID                  string `db:"id"`
	Name                string `db:"name"`
	RoleID              string `db:"role_id"`
	IsAlive             bool   `db:"is_alive"`
	IsSilenced          bool   `db:"is_silenced"`
	IsAbilityBlocked    bool   `db:"is_ability_blocked"`
	IsProtectedPhysical bool   `db:"is_protected_physical"`
	IsProtectedWerewolf bool   `db:"is_protected_werewolf"`
	LinkedTo            string `db:"linked_to"`
	Attributes          string `db:"attributes"`
	Metadata            string `db:"metadata"`
}

type actionRow struct {
	GameID string `db:"game_id"`
	Seq    int    `db:"seq"`
	NightActionRecord
}

type logRow struct {
	GameID string `db:"game_id"`
	Kind   string `db:"kind"` // night | day
	Seq    int    `db:"seq"`
	Line   string `db:"line"`
}

const schema = `
	PRAGMA journal_mode=WAL;

	CREATE TABLE IF NOT EXISTS game (
		id TEXT PRIMARY KEY,
		phase TEXT NOT NULL DEFAULT 'SETUP',
		turn_number INTEGER NOT NULL DEFAULT 0,
		winner TEXT NOT NULL DEFAULT '',
		win_reason TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		last_night_deaths TEXT NOT NULL DEFAULT '[]',
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS game_player (
		game_id TEXT NOT NULL,
		seat INTEGER NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		role_id TEXT NOT NULL,
		is_alive BOOLEAN NOT NULL DEFAULT 1,
		is_silenced BOOLEAN NOT NULL DEFAULT 0,
		is_ability_blocked BOOLEAN NOT NULL DEFAULT 0,
		is_protected_physical BOOLEAN NOT NULL DEFAULT 0,
		is_protected_werewolf BOOLEAN NOT NULL DEFAULT 0,
		linked_to TEXT NOT NULL DEFAULT '',
		attributes TEXT NOT NULL DEFAULT '[]',
		metadata TEXT NOT NULL DEFAULT '{}',
		FOREIGN KEY (game_id) REFERENCES game(id),
		PRIMARY KEY (game_id, id)
	);
	CREATE TABLE IF NOT EXISTS night_action (
		game_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role_id TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		second_target_id TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY (game_id) REFERENCES game(id),
		PRIMARY KEY (game_id, seq)
	);
	CREATE TABLE IF NOT EXISTS game_log (
		game_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		seq INTEGER NOT NULL,
		line TEXT NOT NULL,
		FOREIGN KEY (game_id) REFERENCES game(id),
		PRIMARY KEY (game_id, kind, seq)
	);
	CREATE TABLE IF NOT EXISTS session (
		token TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_game_finished ON game(phase, updated_at);
`

// OpenSQLStore connects to sqlite and creates the schema.
func OpenSQLStore(dsn string, reg *Registry) (*SQLStore, error) {
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", dsn, err)
	}
	// one connection keeps in-memory databases shared across queries
	db.SetMaxOpenConns(1)
	s := &SQLStore{db: db, reg: reg}
	if err := s.initDB(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) initDB() error {
	if _, err := s.db.Exec(schema); err != nil {
		log.Printf("initDB error: %v", err)
		return err
	}
	log.Printf("Database initialized successfully")
	LogDBState(s.db, "after initDB")
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) SaveGame(ctx context.Context, g GameState) error {
	meta, err := json.Marshal(g.Metadata)
	if err != nil {
		return err
	}
	deaths, err := json.Marshal(g.LastNightDeaths)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO game (id, phase, turn_number, winner, win_reason, metadata, last_night_deaths, updated_at)
		VALUES (:id, :phase, :turn_number, :winner, :win_reason, :metadata, :last_night_deaths, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			phase = excluded.phase,
			turn_number = excluded.turn_number,
			winner = excluded.winner,
			win_reason = excluded.win_reason,
			metadata = excluded.metadata,
			last_night_deaths = excluded.last_night_deaths,
			updated_at = excluded.updated_at`,
		gameRow{
			ID:              g.ID,
			Phase:           string(g.Phase),
			TurnNumber:      g.TurnNumber,
			Winner:          string(g.Winner),
			WinReason:       g.WinReason,
			Metadata:        string(meta),
			LastNightDeaths: string(deaths),
			UpdatedAt:       g.UpdatedAt.UTC(),
		})
	if err != nil {
		return fmt.Errorf("save game %s: %w", g.ID, err)
	}

	if err := deleteGameChildren(ctx, tx, g.ID); err != nil {
		return err
	}

	for i, p := range g.Players {
		attrs, _ := json.Marshal(p.Attributes)
		pm, _ := json.Marshal(p.Metadata)
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO game_player (game_id, seat, id, name, role_id, is_alive, is_silenced, is_ability_blocked,
				is_protected_physical, is_protected_werewolf, linked_to, attributes, metadata)
			VALUES (:game_id, :seat, :id, :name, :role_id, :is_alive, :is_silenced, :is_ability_blocked,
				:is_protected_physical, :is_protected_werewolf, :linked_to, :attributes, :metadata)`,
			playerRow{
				GameID:              g.ID,
				Seat:                i,
				ID:                  p.ID,
				Name:                p.Name,
				RoleID:              p.Role.ID,
				IsAlive:             p.IsAlive,
				IsSilenced:          p.IsSilenced,
				IsAbilityBlocked:    p.IsAbilityBlocked,
				IsProtectedPhysical: p.IsProtectedPhysical,
				IsProtectedWerewolf: p.IsProtectedWerewolf,
				LinkedTo:            p.LinkedTo,
				Attributes:          string(attrs),
				Metadata:            string(pm),
			})
		if err != nil {
			return fmt.Errorf("save player %s: %w", p.Name, err)
		}
	}

	for i, a := range g.NightActions {
		a.Timestamp = a.Timestamp.UTC()
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO night_action (game_id, seq, role_id, actor_id, target_id, second_target_id, kind, timestamp)
			VALUES (:game_id, :seq, :role_id, :actor_id, :target_id, :second_target_id, :kind, :timestamp)`,
			actionRow{GameID: g.ID, Seq: i, NightActionRecord: a})
		if err != nil {
			return fmt.Errorf("save night action %d: %w", i, err)
		}
	}

	var lines []logRow
	for i, l := range g.NightLog {
		lines = append(lines, logRow{GameID: g.ID, Kind: "night", Seq: i, Line: l})
	}
	for i, l := range g.DayLog {
		lines = append(lines, logRow{GameID: g.ID, Kind: "day", Seq: i, Line: l})
	}
	if len(lines) > 0 {
		_, err := tx.NamedExecContext(ctx, `INSERT INTO game_log (game_id, kind, seq, line) VALUES (:game_id, :kind, :seq, :line)`, lines)
		if err != nil {
			return fmt.Errorf("save game log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	LogDBState(s.db, "after save game "+g.ID)
	return nil
}

func deleteGameChildren(ctx context.Context, tx *sqlx.Tx, id string) error {
	for _, table := range []string{"game_player", "night_action", "game_log"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE game_id = ?", id); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

func (s *SQLStore) LoadGame(ctx context.Context, id string) (GameState, error) {
	var row gameRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, phase, turn_number, winner, win_reason, metadata, last_night_deaths, updated_at
		FROM game WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return GameState{}, fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}
	if err != nil {
		return GameState{}, err
	}

	g := GameState{
		ID:         row.ID,
		Phase:      Phase(row.Phase),
		TurnNumber: row.TurnNumber,
		Winner:     Faction(row.Winner),
		WinReason:  row.WinReason,
		UpdatedAt:  row.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(row.Metadata), &g.Metadata); err != nil {
		return GameState{}, fmt.Errorf("game %s metadata: %w", id, err)
	}
	if err := json.Unmarshal([]byte(row.LastNightDeaths), &g.LastNightDeaths); err != nil {
		return GameState{}, fmt.Errorf("game %s deaths: %w", id, err)
	}

	var players []playerRow
	if err := s.db.SelectContext(ctx, &players, `
		SELECT game_id, seat, id, name, role_id, is_alive, is_silenced, is_ability_blocked,
			is_protected_physical, is_protected_werewolf, linked_to, attributes, metadata
		FROM game_player WHERE game_id = ? ORDER BY seat`, id); err != nil {
		return GameState{}, err
	}
	for _, pr := range players {
		p := Player{
			ID:                  pr.ID,
			Name:                pr.Name,
			Role:                Role{ID: pr.RoleID},
			IsAlive:             pr.IsAlive,
			IsSilenced:          pr.IsSilenced,
			IsAbilityBlocked:    pr.IsAbilityBlocked,
			IsProtectedPhysical: pr.IsProtectedPhysical,
			IsProtectedWerewolf: pr.IsProtectedWerewolf,
			LinkedTo:            pr.LinkedTo,
		}
		json.Unmarshal([]byte(pr.Attributes), &p.Attributes)
		json.Unmarshal([]byte(pr.Metadata), &p.Metadata)
		g.Players = append(g.Players, p)
	}
	if err := rehydrateRoles(s.reg, &g); err != nil {
		return GameState{}, err
	}

	var actions []actionRow
	if err := s.db.SelectContext(ctx, &actions, `
		SELECT game_id, seq, role_id, actor_id, target_id, second_target_id, kind, timestamp
		FROM night_action WHERE game_id = ? ORDER BY seq`, id); err != nil {
		return GameState{}, err
	}
	for _, a := range actions {
		g.NightActions = append(g.NightActions, a.NightActionRecord)
	}

	var lines []logRow
	if err := s.db.SelectContext(ctx, &lines, `
		SELECT game_id, kind, seq, line FROM game_log WHERE game_id = ? ORDER BY kind, seq`, id); err != nil {
		return GameState{}, err
	}
	for _, l := range lines {
		if l.Kind == "night" {
			g.NightLog = append(g.NightLog, l.Line)
		} else {
			g.DayLog = append(g.DayLog, l.Line)
		}
	}
	return g, nil
}

func (s *SQLStore) LatestGame(ctx context.Context) (GameState, error) {
	var id string
	err := s.db.GetContext(ctx, &id, `SELECT id FROM game ORDER BY updated_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return GameState{}, ErrGameNotFound
	}
	if err != nil {
		return GameState{}, err
	}
	return s.LoadGame(ctx, id)
}

func (s *SQLStore) DeleteGame(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := deleteGameChildren(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM game WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) PruneFinished(ctx context.Context, cutoff time.Time, keep string) (int, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id FROM game WHERE phase = ? AND updated_at < ? AND id != ?`,
		string(PhaseGameOver), cutoff.UTC(), keep)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := s.DeleteGame(ctx, id); err != nil {
			return 0, fmt.Errorf("prune %s: %w", id, err)
		}
	}
	if len(ids) > 0 {
		LogDBState(s.db, "after prune")
	}
	return len(ids), nil
}

func (s *SQLStore) CreateSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO session (token, created_at) VALUES (?, ?)`, token, time.Now().UTC())
	return err
}

func (s *SQLStore) HasSession(ctx context.Context, token string) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM session WHERE token = ?`, token); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE token = ?`, token)
	return err
}
