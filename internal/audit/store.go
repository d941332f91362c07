package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"agentgate/internal/domain"
)

// Record is one persisted audit row.
type Record struct {
	ID        int64
	SessionID string
	Action    string
	ToolName  string
	Command   string
	Verdict   string
	Reason    string
	CreatedAt time.Time
}

// SQLiteStore is the append-only audit trail. Rows are only ever inserted;
// there is no update or delete path.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Set connection pool (single connection for SQLite)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_log (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id  TEXT,
		action      TEXT NOT NULL,
		tool_name   TEXT,
		command     TEXT,
		verdict     TEXT,
		reason      TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_time ON audit_log(created_at);
	CREATE INDEX IF NOT EXISTS idx_audit_session ON audit_log(session_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) LogAudit(ctx context.Context, entry domain.AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (session_id, action, tool_name, command, verdict, reason)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.SessionID, entry.Action, entry.ToolName, entry.Command, entry.Verdict, entry.Reason,
	)
	return err
}

// List returns the most recent records, newest first. An empty sessionID
// lists across all sessions.
func (s *SQLiteStore) List(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, session_id, action, tool_name, command, verdict, reason, created_at
	          FROM audit_log`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var sessID, toolName, command, verdict, reason sql.NullString
		if err := rows.Scan(&r.ID, &sessID, &r.Action, &toolName, &command, &verdict, &reason, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.SessionID = sessID.String
		r.ToolName = toolName.String
		r.Command = command.String
		r.Verdict = verdict.String
		r.Reason = reason.String
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
