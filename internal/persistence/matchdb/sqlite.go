package matchdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"kothmode/internal/koth"
)

// SQLiteIndex is a secondary read-model index of matches, their state
// transitions, and final results. Writes go through a single writer
// goroutine so the engine loop never blocks on the database.
type SQLiteIndex struct {
	db      *sql.DB
	matchID string

	ch     chan req
	wg     sync.WaitGroup
	once   sync.Once
	closed atomic.Bool
	seq    int64
}

type reqKind int

const (
	reqEvent reqKind = iota + 1
	reqResult
)

type req struct {
	kind   reqKind
	event  koth.MatchEvent
	result resultRow
}

type resultRow struct {
	Winner     int32
	EndTick    int64
	Possession map[int32]int64
}

func OpenSQLite(path, matchID string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:      db,
		matchID: matchID,
		ch:      make(chan req, 4096),
	}
	if _, err := db.Exec(
		`INSERT OR IGNORE INTO matches(match_id, started_at) VALUES(?, ?)`,
		matchID, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-style workload; NORMAL is enough durability for
	// a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			match_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			winner INTEGER,
			end_tick INTEGER,
			possession_json TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			match_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			kind TEXT NOT NULL,
			alliance_id INTEGER NOT NULL,
			PRIMARY KEY (match_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_match_tick ON events(match_id, tick);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// WriteEvent implements koth.EventSink. Never blocks; overflow is dropped.
func (s *SQLiteIndex) WriteEvent(e koth.MatchEvent) error {
	if s.closed.Load() {
		return fmt.Errorf("matchdb closed")
	}
	select {
	case s.ch <- req{kind: reqEvent, event: e}:
		return nil
	default:
		return fmt.Errorf("matchdb queue full, event dropped")
	}
}

// RecordResult stores the final outcome on the match row.
func (s *SQLiteIndex) RecordResult(winner int32, endTick int64, possession map[int32]int64) {
	if s.closed.Load() {
		return
	}
	poss := make(map[int32]int64, len(possession))
	for k, v := range possession {
		poss[k] = v
	}
	select {
	case s.ch <- req{kind: reqResult, result: resultRow{Winner: winner, EndTick: endTick, Possession: poss}}:
	default:
	}
}

func (s *SQLiteIndex) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
	})
	s.wg.Wait()
	return s.db.Close()
}

func (s *SQLiteIndex) loop() {
	for r := range s.ch {
		switch r.kind {
		case reqEvent:
			s.seq++
			_, _ = s.db.Exec(
				`INSERT OR REPLACE INTO events(match_id, seq, tick, kind, alliance_id) VALUES(?,?,?,?,?)`,
				s.matchID, s.seq, r.event.Tick, r.event.Kind, r.event.AllianceID,
			)
		case reqResult:
			b, err := json.Marshal(r.result.Possession)
			if err != nil {
				b = []byte("{}")
			}
			_, _ = s.db.Exec(
				`UPDATE matches SET winner=?, end_tick=?, possession_json=? WHERE match_id=?`,
				r.result.Winner, r.result.EndTick, string(b), s.matchID,
			)
		}
	}
}
