package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS conversation_logs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        conversation_id TEXT NOT NULL,
        timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
        mode TEXT NOT NULL DEFAULT 'normal',
        question TEXT NOT NULL,
        answer TEXT NOT NULL,
        prompt_tokens INTEGER NOT NULL DEFAULT 0,
        completion_tokens INTEGER NOT NULL DEFAULT 0,
        total_tokens INTEGER NOT NULL DEFAULT 0,
        prompt_cost REAL,
        completion_cost REAL,
        total_cost REAL
    );
    CREATE INDEX IF NOT EXISTS idx_conversation_logs_conversation_id ON conversation_logs (conversation_id);
    CREATE INDEX IF NOT EXISTS idx_conversation_logs_timestamp ON conversation_logs (timestamp);

    CREATE TABLE IF NOT EXISTS settings (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// AppendLog inserts one chat turn. The timestamp is assigned at write time
// when the caller leaves it zero.
func (s *SQLiteStore) AppendLog(entry *ConversationLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	stmt, err := s.db.Prepare(`INSERT INTO conversation_logs
        (conversation_id, timestamp, mode, question, answer,
         prompt_tokens, completion_tokens, total_tokens,
         prompt_cost, completion_cost, total_cost)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare log insert: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.Exec(entry.ConversationID, entry.Timestamp, entry.Mode,
		entry.Question, entry.Answer,
		entry.PromptTokens, entry.CompletionTokens, entry.TotalTokens,
		entry.PromptCost, entry.CompletionCost, entry.TotalCost)
	if err != nil {
		return fmt.Errorf("failed to execute log insert: %w", err)
	}
	entry.ID, _ = res.LastInsertId()
	return nil
}

// filterClause renders the optional timestamp bounds as a WHERE clause.
// Both bounds are inclusive.
func filterClause(filter LogFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.Start != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, *filter.Start)
	}
	if filter.End != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, *filter.End)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE " + clauses[0]
	if len(clauses) == 2 {
		where += " AND " + clauses[1]
	}
	return where, args
}

func (s *SQLiteStore) QueryLogs(filter LogFilter) ([]ConversationLog, error) {
	where, args := filterClause(filter)
	query := "SELECT " + logColumns + " FROM conversation_logs" + where + " ORDER BY timestamp ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()
	return scanLogs(rows)
}

// ListRecent returns the latest entries, newest first.
func (s *SQLiteStore) ListRecent(limit int) ([]ConversationLog, error) {
	query := "SELECT " + logColumns + " FROM conversation_logs ORDER BY timestamp DESC LIMIT ?"
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent logs: %w", err)
	}
	defer rows.Close()
	return scanLogs(rows)
}

// Aggregate computes totals over the filtered rows. Sums over zero rows come
// back as 0 / 0.0, never NULL.
func (s *SQLiteStore) Aggregate(filter LogFilter) (*Stats, error) {
	where, args := filterClause(filter)

	stats := &Stats{CountByMode: make(map[string]int)}
	query := "SELECT COUNT(id), COALESCE(SUM(total_tokens), 0), COALESCE(SUM(total_cost), 0.0) FROM conversation_logs" + where
	err := s.db.QueryRow(query, args...).Scan(&stats.TotalConversations, &stats.TotalTokens, &stats.TotalCost)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate logs: %w", err)
	}

	modeQuery := "SELECT mode, COUNT(mode) FROM conversation_logs" + where + " GROUP BY mode"
	rows, err := s.db.Query(modeQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate modes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mode string
		var count int
		if err := rows.Scan(&mode, &count); err != nil {
			return nil, fmt.Errorf("failed to scan mode count: %w", err)
		}
		stats.CountByMode[mode] = count
	}
	return stats, rows.Err()
}

// ClearLogs deletes every log row. Irreversible.
func (s *SQLiteStore) ClearLogs() error {
	if _, err := s.db.Exec("DELETE FROM conversation_logs"); err != nil {
		return fmt.Errorf("failed to clear logs: %w", err)
	}
	return nil
}

// Settings methods (single-row admin key lives here)

// GetSetting returns the value for key. A missing key is reported via the
// bool, not an error.
func (s *SQLiteStore) GetSetting(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to query setting: %w", err)
	}
	return value, true, nil
}

func (s *SQLiteStore) SetSetting(key, value string) error {
	_, err := s.db.Exec("INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value", key, value)
	if err != nil {
		return fmt.Errorf("failed to upsert setting: %w", err)
	}
	return nil
}

const logColumns = `id, conversation_id, timestamp, mode, question, answer,
    prompt_tokens, completion_tokens, total_tokens,
    prompt_cost, completion_cost, total_cost`

func scanLogs(rows *sql.Rows) ([]ConversationLog, error) {
	var logs []ConversationLog
	for rows.Next() {
		var entry ConversationLog
		var promptCost, completionCost, totalCost sql.NullFloat64
		if err := rows.Scan(&entry.ID, &entry.ConversationID, &entry.Timestamp, &entry.Mode,
			&entry.Question, &entry.Answer,
			&entry.PromptTokens, &entry.CompletionTokens, &entry.TotalTokens,
			&promptCost, &completionCost, &totalCost); err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}
		entry.PromptCost = promptCost.Float64
		entry.CompletionCost = completionCost.Float64
		entry.TotalCost = totalCost.Float64
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
