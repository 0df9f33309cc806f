package rewards

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps daily attempt markers on disk so a restart mid-day
// does not re-claim everything.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
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

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	schema := []string{
		`CREATE TABLE IF NOT EXISTS daily_attempts (
			account TEXT NOT NULL,
			feature TEXT NOT NULL,
			day TEXT NOT NULL,
			PRIMARY KEY (account, feature)
		);`,
		`CREATE TABLE IF NOT EXISTS visit_stats (
			account TEXT NOT NULL,
			peer INTEGER NOT NULL,
			outcomes TEXT NOT NULL,
			PRIMARY KEY (account, peer)
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LastAttempt(account, feature string) (string, error) {
	var day string
	err := s.db.QueryRow(
		`SELECT day FROM daily_attempts WHERE account = ? AND feature = ?`,
		account, feature).Scan(&day)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return day, err
}

func (s *SQLiteStore) MarkAttempt(account, feature, day string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO daily_attempts(account, feature, day) VALUES(?,?,?)`,
		account, feature, day)
	return err
}

// LoadVisitStats returns one account's per-peer visit outcome history.
// Outcomes are stored as a string of '0'/'1', oldest first.
func (s *SQLiteStore) LoadVisitStats(account string) (map[uint64][]bool, error) {
	rows, err := s.db.Query(
		`SELECT peer, outcomes FROM visit_stats WHERE account = ?`, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uint64][]bool)
	for rows.Next() {
		var peer uint64
		var enc string
		if err := rows.Scan(&peer, &enc); err != nil {
			return nil, err
		}
		o := make([]bool, 0, len(enc))
		for _, c := range enc {
			o = append(o, c == '1')
		}
		out[peer] = o
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveVisitStats(account string, stats map[uint64][]bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM visit_stats WHERE account = ?`, account); err != nil {
		_ = tx.Rollback()
		return err
	}
	for peer, o := range stats {
		enc := make([]byte, len(o))
		for i, ok := range o {
			if ok {
				enc[i] = '1'
			} else {
				enc[i] = '0'
			}
		}
		if _, err := tx.Exec(
			`INSERT INTO visit_stats(account, peer, outcomes) VALUES(?,?,?)`,
			account, peer, string(enc)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// MemoryStore is the in-process fallback when no state dir is configured.
type MemoryStore struct {
	mu   sync.Mutex
	days map[[2]string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{days: make(map[[2]string]string)}
}

func (m *MemoryStore) LastAttempt(account, feature string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.days[[2]string{account, feature}], nil
}

func (m *MemoryStore) MarkAttempt(account, feature, day string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days[[2]string{account, feature}] = day
	return nil
}
