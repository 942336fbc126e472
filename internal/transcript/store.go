// Package transcript persists a queryable record of each run: every
// message that entered the conversation log and every tool invocation with
// its arguments, output, and timing. Nothing in the loop depends on it;
// it exists for postmortem.
package transcript

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store is a SQLite-backed transcript.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the transcript database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		task TEXT NOT NULL,
		model TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		result TEXT
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_messages_run ON messages(run_id, seq);

	CREATE TABLE IF NOT EXISTS tool_calls (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		tool_name TEXT NOT NULL,
		content TEXT NOT NULL,
		output TEXT,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		duration_ms INTEGER,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_tool_calls_run ON tool_calls(run_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_tool_calls_tool ON tool_calls(tool_name);
	`

	_, err := s.db.Exec(schema)
	return err
}

// BeginRun records a new run and returns its identifier.
func (s *Store) BeginRun(task, model string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, task, model, started_at) VALUES (?, ?, ?, ?)`,
		id, task, model, time.Now(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun stamps a run's completion time and final result.
func (s *Store) FinishRun(runID, result string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET completed_at = ?, result = ? WHERE id = ?`,
		time.Now(), result, runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// RecordMessage appends one conversation entry to the transcript. seq is
// the entry's position in the log at the time it was recorded.
func (s *Store) RecordMessage(runID string, seq int, role, content string) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (id, run_id, seq, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), runID, seq, role, content, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// RecordToolCall persists an executed tool invocation with its timing.
func (s *Store) RecordToolCall(runID, toolName, content, output string, startedAt, completedAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO tool_calls (id, run_id, tool_name, content, output, started_at, completed_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), runID, toolName, content, output,
		startedAt, completedAt, completedAt.Sub(startedAt).Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert tool call: %w", err)
	}
	return nil
}

// Message is one persisted conversation entry.
type Message struct {
	Seq       int
	Role      string
	Content   string
	CreatedAt time.Time
}

// Messages returns a run's conversation entries in order.
func (s *Store) Messages(runID string) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT seq, role, content, created_at FROM messages
		 WHERE run_id = ? ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Seq, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ToolCallCount returns how many tool calls a run executed.
func (s *Store) ToolCallCount(runID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM tool_calls WHERE run_id = ?`, runID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tool calls: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
