// Package store provides SQLite-backed persistence for the drover coordinator.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/drover/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Sentinel errors for the owned lifecycle transitions. The store enforces
// every transition precondition itself; callers never check-then-write.
var (
	// ErrCommandNotFound indicates the command id is unknown to the store.
	ErrCommandNotFound = fmt.Errorf("command not found")

	// ErrNotRunning indicates a result was submitted for a command that is
	// not currently running.
	ErrNotRunning = fmt.Errorf("command is not running")

	// ErrAgentMismatch indicates the submitting agent does not hold the
	// command's current assignment.
	ErrAgentMismatch = fmt.Errorf("command is assigned to a different agent")
)

// Store provides access to the drover coordinator SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS commands (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		result TEXT,
		agent_id TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		assigned_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		command_id TEXT,
		details TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_commands_status ON commands(status);
	CREATE INDEX IF NOT EXISTS idx_audit_events_command_id ON audit_events(command_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Command Operations ---

// CreateCommand inserts a new pending command.
func (s *Store) CreateCommand(cmdType models.CommandType, payload json.RawMessage) (*models.Command, error) {
	now := time.Now().UTC()
	cmd := &models.Command{
		ID:        uuid.New().String(),
		Type:      cmdType,
		Payload:   payload,
		Status:    models.CommandStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.Exec(
		`INSERT INTO commands (id, type, payload, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		cmd.ID, cmd.Type, string(cmd.Payload), cmd.Status, cmd.CreatedAt, cmd.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert command: %w", err)
	}
	return cmd, nil
}

// GetCommand retrieves a command by ID. Returns nil, nil when the id is unknown.
func (s *Store) GetCommand(id string) (*models.Command, error) {
	row := s.db.QueryRow(
		`SELECT id, type, payload, status, result, agent_id, created_at, updated_at, assigned_at FROM commands WHERE id = ?`,
		id,
	)
	cmd, err := scanCommand(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query command: %w", err)
	}
	return cmd, nil
}

// ListCommands returns all commands in creation order, optionally filtered
// by status.
func (s *Store) ListCommands(status string) ([]models.Command, error) {
	query := `SELECT id, type, payload, status, result, agent_id, created_at, updated_at, assigned_at FROM commands`
	var args []interface{}

	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		cmds = append(cmds, *cmd)
	}
	return cmds, rows.Err()
}

// ClaimOldest atomically binds the oldest eligible command to agentID and
// transitions it to running. Pending and failed commands share one
// assignment pool ordered strictly by creation time. Returns nil, nil when
// nothing is eligible.
//
// The select and the bind happen in a single transaction with a
// rows-affected check on the guarded UPDATE, so two concurrent callers can
// never bind the same command.
func (s *Store) ClaimOldest(agentID string) (*models.Command, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	row := tx.QueryRow(
		`SELECT id, type, payload, status, result, agent_id, created_at, updated_at, assigned_at
		 FROM commands WHERE status IN (?, ?)
		 ORDER BY created_at ASC, id ASC LIMIT 1`,
		models.CommandStatusPending, models.CommandStatusFailed,
	)
	cmd, err := scanCommand(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select eligible command: %w", err)
	}

	result, err := tx.Exec(
		`UPDATE commands SET status = ?, agent_id = ?, assigned_at = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		models.CommandStatusRunning, agentID, now, now,
		cmd.ID, models.CommandStatusPending, models.CommandStatusFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("bind command: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Command was claimed by another caller between our read and write
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	cmd.Status = models.CommandStatusRunning
	cmd.AgentID = agentID
	cmd.AssignedAt = &now
	cmd.UpdatedAt = now
	return cmd, nil
}

// RecoverRunning reclaims every running command in one bulk update,
// transitioning it to failed with its assignment cleared. Any command still
// running when the coordinator starts was bound by a dead coordinator
// process; failed keeps it re-eligible while recording that a crash
// happened. Returns the number of reclaimed commands.
func (s *Store) RecoverRunning() (int, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`UPDATE commands SET status = ?, agent_id = NULL, assigned_at = NULL, updated_at = ? WHERE status = ?`,
		models.CommandStatusFailed, now, models.CommandStatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("recover running commands: %w", err)
	}

	reclaimed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return int(reclaimed), nil
}

// CompleteCommand transitions a running command to completed, storing its
// result. Preconditions are checked in order inside one transaction:
// the command exists (ErrCommandNotFound), it is running (ErrNotRunning),
// and it is bound to the submitting agent (ErrAgentMismatch). On any
// precondition failure nothing is mutated; this fences out an agent that
// reports after the command was reclaimed and reassigned. The assignment
// columns are left untouched as final ownership history.
func (s *Store) CompleteCommand(id, agentID string, result json.RawMessage) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status models.CommandStatus
	var boundAgent sql.NullString
	err = tx.QueryRow(`SELECT status, agent_id FROM commands WHERE id = ?`, id).Scan(&status, &boundAgent)
	if err == sql.ErrNoRows {
		return ErrCommandNotFound
	}
	if err != nil {
		return fmt.Errorf("query command: %w", err)
	}

	if status != models.CommandStatusRunning {
		return ErrNotRunning
	}
	if !boundAgent.Valid || boundAgent.String != agentID {
		return ErrAgentMismatch
	}

	res, err := tx.Exec(
		`UPDATE commands SET status = ?, result = ?, updated_at = ? WHERE id = ? AND status = ? AND agent_id = ?`,
		models.CommandStatusCompleted, string(result), time.Now().UTC(), id, models.CommandStatusRunning, agentID,
	)
	if err != nil {
		return fmt.Errorf("complete command: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Command changed between our check and update
		return ErrNotRunning
	}

	return tx.Commit()
}

// --- Audit Operations ---

// WriteAuditEvent appends an audit event row.
func (s *Store) WriteAuditEvent(action, inputsHash, outcome, commandID, details string) (*models.AuditEvent, error) {
	now := time.Now().UTC()
	ev := &models.AuditEvent{
		ID:         uuid.New().String(),
		Action:     action,
		InputsHash: inputsHash,
		Outcome:    outcome,
		CommandID:  commandID,
		Details:    details,
		Timestamp:  now,
	}

	_, err := s.db.Exec(
		`INSERT INTO audit_events (id, action, inputs_hash, outcome, command_id, details, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Action, ev.InputsHash, ev.Outcome, ev.CommandID, ev.Details, ev.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert audit event: %w", err)
	}
	return ev, nil
}

// GetAuditEventsForCommand returns audit events for a command, newest first.
func (s *Store) GetAuditEventsForCommand(commandID string) ([]models.AuditEvent, error) {
	rows, err := s.db.Query(
		`SELECT id, action, inputs_hash, outcome, command_id, details, timestamp FROM audit_events WHERE command_id = ? ORDER BY timestamp DESC`,
		commandID,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var ev models.AuditEvent
		var cmdID, details sql.NullString
		if err := rows.Scan(&ev.ID, &ev.Action, &ev.InputsHash, &ev.Outcome, &cmdID, &details, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if cmdID.Valid {
			ev.CommandID = cmdID.String
		}
		if details.Valid {
			ev.Details = details.String
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// --- Helpers ---

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCommand(row rowScanner) (*models.Command, error) {
	cmd := &models.Command{}
	var payload string
	var result, agentID sql.NullString
	var assignedAt sql.NullTime

	err := row.Scan(&cmd.ID, &cmd.Type, &payload, &cmd.Status, &result, &agentID, &cmd.CreatedAt, &cmd.UpdatedAt, &assignedAt)
	if err != nil {
		return nil, err
	}

	cmd.Payload = json.RawMessage(payload)
	if result.Valid {
		cmd.Result = json.RawMessage(result.String)
	}
	if agentID.Valid {
		cmd.AgentID = agentID.String
	}
	if assignedAt.Valid {
		cmd.AssignedAt = &assignedAt.Time
	}
	return cmd, nil
}
