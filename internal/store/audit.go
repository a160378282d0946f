package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded by the embedded backend.
const (
	ActionSignUp        = "signup"
	ActionCaseInsert    = "case_insert"
	ActionProfileUpdate = "profile_update"
)

// AuditEntry represents an audit log entry
type AuditEntry struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Action    string                 `json:"action"`
	SubjectID string                 `json:"subject_id,omitempty"`
	Details   map[string]interface{} `json:"details"`
	CreatedAt time.Time              `json:"created_at"`
}

// setupAuditTables creates the audit table if it doesn't exist
func (s *Store) setupAuditTables() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS audit_entries (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			action TEXT NOT NULL,
			subject_id TEXT,
			details TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_user_id ON audit_entries(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_entries(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_entries(action)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute audit migration: %w", err)
		}
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func addAuditTx(ctx context.Context, ex execer, entry AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.Details == nil {
		entry.Details = map[string]interface{}{}
	}

	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	_, err = ex.ExecContext(ctx, `INSERT INTO audit_entries (id, user_id, action, subject_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Action, entry.SubjectID, string(details), entry.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save audit entry: %w", err)
	}
	return nil
}

// AddAuditEntry records an audit entry outside of a backend mutation.
func (s *Store) AddAuditEntry(ctx context.Context, entry AuditEntry) error {
	return addAuditTx(ctx, s.db, entry)
}

// GetAuditEntries returns the audit trail of userID, newest first. A limit
// of 0 returns every entry.
func (s *Store) GetAuditEntries(ctx context.Context, userID string, limit int) ([]AuditEntry, error) {
	query := `SELECT id, user_id, action, subject_id, details, created_at
		FROM audit_entries
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var (
			e         AuditEntry
			subjectID sql.NullString
			details   string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &subjectID, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.SubjectID = subjectID.String
		e.Details = map[string]interface{}{}
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			// Keep the entry visible even when details are corrupt
			e.Details = map[string]interface{}{"_error": "failed to unmarshal audit details"}
		}
		e.CreatedAt = time.UnixMilli(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}

	return entries, nil
}
