package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/backend"
	"github.com/Ashfaaq98/casedesk/internal/model"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Store is the embedded SQLite backend. It serves the same auth and row
// contract as the hosted platform and is used for local development, demos
// and tests.
type Store struct {
	db         *sql.DB
	hashCost   int
	sessionTTL time.Duration
	now        func() time.Time
}

var _ backend.Client = (*Store)(nil)

// Option customizes a Store.
type Option func(*Store)

// WithHashCost sets the bcrypt cost used for new passwords.
func WithHashCost(cost int) Option {
	return func(s *Store) { s.hashCost = cost }
}

// WithSessionTTL sets how long issued sessions stay valid.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Store) { s.sessionTTL = ttl }
}

// NewStore creates a new SQLite store instance
func NewStore(dbPath string, opts ...Option) (*Store, error) {
	// Ensure target directory exists (e.g., ./data)
	if dir := filepath.Dir(dbPath); dbPath != ":memory:" && dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open(sqliteDriver, dbPath+sqliteParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	store := &Store{
		db:         db,
		hashCost:   bcrypt.DefaultCost,
		sessionTTL: 7 * 24 * time.Hour,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate performs database migrations
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			is_pro INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS cases (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL CHECK (length(trim(title)) > 0),
			description TEXT,
			status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active','pending','closed')),
			file_count INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cases_user_id ON cases(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cases_created_at ON cases(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return s.setupAuditTables()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates the user, its profile and a first session.
func (s *Store) SignUp(ctx context.Context, p backend.SignUpParams) (*backend.Session, error) {
	user, err := s.createUser(ctx, p, true)
	if err != nil {
		return nil, err
	}
	return s.issueSession(ctx, user)
}

// createUser inserts the user row and, when withProfile is set, its profile
// in the same transaction.
func (s *Store) createUser(ctx context.Context, p backend.SignUpParams, withProfile bool) (model.User, error) {
	email := normalizeEmail(p.Email)
	if email == "" || p.Password == "" {
		return model.User{}, &backend.Error{Code: "validation_failed", Message: "Email and password are required", Status: 422}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), s.hashCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.User{}, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func(e error) (model.User, error) {
		_ = tx.Rollback()
		return model.User{}, e
	}

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE email = ?`, email).Scan(&exists); err != nil {
		return rollback(fmt.Errorf("check existing user: %w", err))
	}
	if exists > 0 {
		return rollback(&backend.Error{Code: backend.CodeUserExists, Message: "User already registered", Status: 422})
	}

	now := s.now()
	user := model.User{ID: uuid.NewString(), Email: email}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Email, string(hash), now.UnixMilli()); err != nil {
		return rollback(fmt.Errorf("insert user: %w", err))
	}

	if withProfile {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO profiles (id, user_id, first_name, last_name, is_pro, created_at) VALUES (?, ?, ?, ?, 0, ?)`,
			uuid.NewString(), user.ID, strings.TrimSpace(p.FirstName), strings.TrimSpace(p.LastName), now.UnixMilli()); err != nil {
			return rollback(fmt.Errorf("insert profile: %w", err))
		}
	}

	if err := addAuditTx(ctx, tx, AuditEntry{
		UserID:    user.ID,
		Action:    ActionSignUp,
		SubjectID: user.ID,
		Details:   map[string]interface{}{"email": email, "profile": withProfile},
		CreatedAt: now,
	}); err != nil {
		return rollback(err)
	}

	if err := tx.Commit(); err != nil {
		return model.User{}, fmt.Errorf("commit tx: %w", err)
	}
	return user, nil
}

func (s *Store) issueSession(ctx context.Context, user model.User) (*backend.Session, error) {
	now := s.now()
	sess := &backend.Session{
		User:         user,
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    now.Add(s.sessionTTL),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		sess.AccessToken, user.ID, now.UnixMilli(), sess.ExpiresAt.UnixMilli()); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// SignIn checks the password and issues a new session.
func (s *Store) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	var user model.User
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT id, email, password_hash FROM users WHERE email = ?`,
		normalizeEmail(email)).Scan(&user.ID, &user.Email, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, invalidCredentials()
	}
	return s.issueSession(ctx, user)
}

func invalidCredentials() *backend.Error {
	return &backend.Error{Code: backend.CodeInvalidCredentials, Message: "Invalid login credentials", Status: 400}
}

// SignOut deletes the session row.
func (s *Store) SignOut(ctx context.Context, sess *backend.Session) error {
	if sess == nil || sess.AccessToken == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, sess.AccessToken); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Restore looks up an unexpired session by access token.
func (s *Store) Restore(ctx context.Context, sess *backend.Session) (*backend.Session, error) {
	if sess == nil || sess.AccessToken == "" {
		return nil, &backend.Error{Code: backend.CodeUnauthorized, Message: "no session", Status: 401}
	}
	var user model.User
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, `SELECT u.id, u.email, s.expires_at
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token = ?`, sess.AccessToken).Scan(&user.ID, &user.Email, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && s.now().UnixMilli() >= expiresAt) {
		return nil, &backend.Error{Code: backend.CodeUnauthorized, Message: "Session expired, please sign in again", Status: 401}
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	restored := *sess
	restored.User = user
	restored.ExpiresAt = time.UnixMilli(expiresAt)
	return &restored, nil
}

// ProfileByOwner returns the profile of userID or a no-rows error.
func (s *Store) ProfileByOwner(ctx context.Context, userID string) (model.Profile, error) {
	var p model.Profile
	var isPro int
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `SELECT id, user_id, first_name, last_name, is_pro, created_at
		FROM profiles WHERE user_id = ?`, userID).Scan(
		&p.ID, &p.UserID, &p.FirstName, &p.LastName, &isPro, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, backend.ErrNoRows("profile")
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("failed to query profile: %w", err)
	}
	p.IsPro = isPro != 0
	p.CreatedAt = time.UnixMilli(createdAt)
	return p, nil
}

// CasesByOwner returns the cases of userID, newest first.
func (s *Store) CasesByOwner(ctx context.Context, userID string) ([]model.Case, error) {
	query := `SELECT id, user_id, title, description, status, file_count, created_at, updated_at
		FROM cases WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	cases := make([]model.Case, 0)
	for rows.Next() {
		var c model.Case
		var description sql.NullString
		var status string
		var createdAt, updatedAt int64

		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &description, &status,
			&c.FileCount, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		if description.Valid {
			c.Description = description.String
		}
		c.Status = model.Status(status)
		c.CreatedAt = time.UnixMilli(createdAt)
		c.UpdatedAt = time.UnixMilli(updatedAt)
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating case rows: %w", err)
	}

	return cases, nil
}

// InsertCase stores a case and returns the row with its assigned id and timestamps.
func (s *Store) InsertCase(ctx context.Context, nc model.NewCase) (model.Case, error) {
	return s.insertCaseAt(ctx, nc, s.now())
}

func (s *Store) insertCaseAt(ctx context.Context, nc model.NewCase, at time.Time) (model.Case, error) {
	if strings.TrimSpace(nc.Title) == "" {
		return model.Case{}, &backend.Error{Code: "23514", Message: "Case title must not be empty", Status: 400}
	}
	if nc.Status == "" {
		nc.Status = model.StatusActive
	}
	if !nc.Status.Valid() {
		return model.Case{}, &backend.Error{Code: "23514", Message: fmt.Sprintf("invalid case status %q", nc.Status), Status: 400}
	}

	c := model.Case{
		ID:          uuid.NewString(),
		UserID:      nc.UserID,
		Title:       nc.Title,
		Description: nc.Description,
		Status:      nc.Status,
		FileCount:   nc.FileCount,
		CreatedAt:   time.UnixMilli(at.UnixMilli()),
		UpdatedAt:   time.UnixMilli(at.UnixMilli()),
	}

	var description sql.NullString
	if c.Description != "" {
		description = sql.NullString{String: c.Description, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Case{}, fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO cases (
		id, user_id, title, description, status, file_count, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Title, description, string(c.Status), c.FileCount,
		c.CreatedAt.UnixMilli(), c.UpdatedAt.UnixMilli()); err != nil {
		_ = tx.Rollback()
		return model.Case{}, fmt.Errorf("failed to save case: %w", err)
	}
	if err := addAuditTx(ctx, tx, AuditEntry{
		UserID:    c.UserID,
		Action:    ActionCaseInsert,
		SubjectID: c.ID,
		Details:   map[string]interface{}{"title": c.Title, "status": string(c.Status)},
		CreatedAt: at,
	}); err != nil {
		_ = tx.Rollback()
		return model.Case{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Case{}, fmt.Errorf("commit tx: %w", err)
	}
	return c, nil
}

// SetProfilePro updates is_pro for the profile owned by userID. Like the
// hosted row API, an update matching no row is not an error.
func (s *Store) SetProfilePro(ctx context.Context, userID string, pro bool) error {
	flag := 0
	if pro {
		flag = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE profiles SET is_pro = ? WHERE user_id = ?`, flag, userID)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to update profile: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := addAuditTx(ctx, tx, AuditEntry{
		UserID:    userID,
		Action:    ActionProfileUpdate,
		SubjectID: userID,
		Details:   map[string]interface{}{"is_pro": pro, "rows": n},
		CreatedAt: s.now(),
	}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UserByEmail returns the user registered with email.
func (s *Store) UserByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx, `SELECT id, email FROM users WHERE email = ?`, normalizeEmail(email)).Scan(&u.ID, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, backend.ErrNoRows("user")
	}
	if err != nil {
		return model.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}
