// Package agent implements the drover worker: the local execution journal
// and the poll loop driving claim, execute, report cycles.
package agent

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/drover/internal/models"
	_ "modernc.org/sqlite"
)

// Journal is the agent-local durable record of executed commands. It is a
// separate database from the coordinator store, locally durable and
// crash-recoverable on its own; the two never share a transaction.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (or creates) the journal database at dbPath.
func OpenJournal(dbPath string) (*Journal, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS executions (
		command_id TEXT PRIMARY KEY,
		executed_at DATETIME NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// AlreadyExecuted reports whether a command has been executed on this agent.
func (j *Journal) AlreadyExecuted(commandID string) (bool, error) {
	var one int
	err := j.db.QueryRow(`SELECT 1 FROM executions WHERE command_id = ?`, commandID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query execution record: %w", err)
	}
	return true, nil
}

// MarkExecuted records a command as executed. Marking an already-recorded
// id is a no-op, not an error.
func (j *Journal) MarkExecuted(commandID string) error {
	_, err := j.db.Exec(
		`INSERT OR IGNORE INTO executions (command_id, executed_at) VALUES (?, ?)`,
		commandID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert execution record: %w", err)
	}
	return nil
}

// Records returns all execution records, oldest first.
func (j *Journal) Records() ([]models.ExecutionRecord, error) {
	rows, err := j.db.Query(`SELECT command_id, executed_at FROM executions ORDER BY executed_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query execution records: %w", err)
	}
	defer rows.Close()

	var records []models.ExecutionRecord
	for rows.Next() {
		var rec models.ExecutionRecord
		if err := rows.Scan(&rec.CommandID, &rec.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scan execution record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
