package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements ResultStore using SQLite
type SQLiteStore struct {
	db          *sql.DB
	session     *Session
	mu          sync.RWMutex
	resultCount int64
	baseDir     string
}

const schema = `
CREATE TABLE IF NOT EXISTS results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	workload INTEGER NOT NULL,
	trial INTEGER NOT NULL,
	size_bytes INTEGER NOT NULL,
	ticks INTEGER NOT NULL,
	bytes INTEGER NOT NULL,
	page_faults INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_workload ON results(workload);
CREATE INDEX IF NOT EXISTS idx_timestamp ON results(timestamp);
`

// NewSQLiteStore creates a new SQLite result store
func NewSQLiteStore(baseDir string, session *Session) (*SQLiteStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	sessionDir := filepath.Join(baseDir, session.ID)
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	dbPath := filepath.Join(sessionDir, "results.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	store := &SQLiteStore{
		db:      db,
		session: session,
		baseDir: baseDir,
	}

	return store, nil
}

// OpenSQLiteStore opens an existing SQLite store for reading
func OpenSQLiteStore(baseDir string, sessionID string) (*SQLiteStore, error) {
	sessionDir := filepath.Join(baseDir, sessionID)
	dbPath := filepath.Join(sessionDir, "results.db")

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &SQLiteStore{
		db:      db,
		baseDir: baseDir,
	}

	session, err := loadSessionMetadata(sessionDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load session metadata: %w", err)
	}
	store.session = session
	// Seed the live counter so GetSession reports the persisted count.
	store.resultCount = session.ResultCount

	return store, nil
}

func (s *SQLiteStore) WriteResult(result *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `INSERT INTO results (timestamp, workload, trial, size_bytes, ticks, bytes, page_faults)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		result.Timestamp,
		result.Workload,
		result.Trial,
		result.SizeBytes,
		result.Ticks,
		result.Bytes,
		result.PageFaults,
	)

	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	s.resultCount++
	return nil
}

func (s *SQLiteStore) WriteBatch(results []*Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO results (timestamp, workload, trial, size_bytes, ticks, bytes, page_faults)
							 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, result := range results {
		_, err := stmt.Exec(
			result.Timestamp,
			result.Workload,
			result.Trial,
			result.SizeBytes,
			result.Ticks,
			result.Bytes,
			result.PageFaults,
		)
		if err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
		s.resultCount++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (s *SQLiteStore) ReadResults(ctx context.Context, filter *ResultFilter) ([]*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT timestamp, workload, trial, size_bytes, ticks, bytes, page_faults FROM results WHERE 1=1"
	args := []interface{}{}

	if filter != nil {
		if filter.Workload != nil {
			query += " AND workload = ?"
			args = append(args, *filter.Workload)
		}
		if filter.StartTime != nil {
			query += " AND timestamp >= ?"
			args = append(args, *filter.StartTime)
		}
		if filter.EndTime != nil {
			query += " AND timestamp <= ?"
			args = append(args, *filter.EndTime)
		}
	}

	query += " ORDER BY timestamp ASC"

	if filter != nil {
		if filter.Limit > 0 {
			query += " LIMIT ?"
			args = append(args, filter.Limit)
		} else if filter.Offset > 0 {
			// SQLite requires a LIMIT clause before OFFSET
			query += " LIMIT -1"
		}
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		var result Result
		err := rows.Scan(
			&result.Timestamp,
			&result.Workload,
			&result.Trial,
			&result.SizeBytes,
			&result.Ticks,
			&result.Bytes,
			&result.PageFaults,
		)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, &result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return results, nil
}

func (s *SQLiteStore) GetWorkloads(ctx context.Context) ([]WorkloadType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT workload FROM results ORDER BY workload")
	if err != nil {
		return nil, fmt.Errorf("query workloads: %w", err)
	}
	defer rows.Close()

	var workloads []WorkloadType
	for rows.Next() {
		var w WorkloadType
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("scan workload: %w", err)
		}
		workloads = append(workloads, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return workloads, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) GetSession() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session := *s.session
	session.ResultCount = s.resultCount
	return &session
}

func (s *SQLiteStore) UpdateSession(session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = session
	sessionDir := filepath.Join(s.baseDir, session.ID)
	return saveSessionMetadata(sessionDir, session)
}
