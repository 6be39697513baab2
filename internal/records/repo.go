// Package records persists the canonical user directory and the historical
// attendance log. Identity is always keyed by the (terminal address,
// device-local user id) pair; the numeric id alone is meaningless across
// terminals.
package records

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DirectoryUser is one enrolled identity as stored, one row per
// (terminal, device user id).
type DirectoryUser struct {
	TerminalAddr string    `json:"terminal_addr"`
	DeviceUserID int       `json:"device_user_id"`
	Name         string    `json:"name"`
	Card         *string   `json:"card,omitempty"`
	Role         *int      `json:"role,omitempty"`
	Password     *string   `json:"-"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LogEntry is one stored attendance punch.
type LogEntry struct {
	ID           string    `json:"id"`
	TerminalAddr string    `json:"terminal_addr"`
	DeviceUserID int       `json:"device_user_id"`
	Name         string    `json:"name"`
	Card         *string   `json:"card,omitempty"`
	Role         *int      `json:"role,omitempty"`
	PunchedAt    time.Time `json:"punched_at"`
	PunchType    int       `json:"punch_type"`
	CheckStatus  string    `json:"check_status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repository persists directory and log rows in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// UpsertUser writes a directory row keyed by the composite identity.
// Optional fields already on file survive a sync that omits them.
func (r *Repository) UpsertUser(ctx context.Context, u DirectoryUser) error {
	if u.TerminalAddr == "" {
		return errors.New("terminal address required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO directory_users (terminal_addr, device_user_id, name, card, role, password, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (terminal_addr, device_user_id) DO UPDATE SET
			name = EXCLUDED.name,
			card = COALESCE(EXCLUDED.card, directory_users.card),
			role = COALESCE(EXCLUDED.role, directory_users.role),
			password = COALESCE(EXCLUDED.password, directory_users.password),
			updated_at = NOW()
	`, u.TerminalAddr, u.DeviceUserID, u.Name, u.Card, u.Role, u.Password)
	return err
}

// DeleteUser removes a directory row by composite key.
func (r *Repository) DeleteUser(ctx context.Context, terminalAddr string, deviceUserID int) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM directory_users WHERE terminal_addr = $1 AND device_user_id = $2
	`, terminalAddr, deviceUserID)
	return err
}

// ListUsers returns directory rows, optionally filtered to one terminal.
func (r *Repository) ListUsers(ctx context.Context, terminalAddr string) ([]DirectoryUser, error) {
	query := `
		SELECT terminal_addr, device_user_id, name, card, role, password, updated_at
		FROM directory_users`
	args := []any{}
	if terminalAddr != "" {
		query += ` WHERE terminal_addr = $1`
		args = append(args, terminalAddr)
	}
	query += ` ORDER BY terminal_addr, device_user_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []DirectoryUser
	for rows.Next() {
		var u DirectoryUser
		if err := rows.Scan(&u.TerminalAddr, &u.DeviceUserID, &u.Name, &u.Card, &u.Role, &u.Password, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// InsertPunches writes candidate log rows and reports how many were new.
// The unique (terminal_addr, device_user_id, punched_at) constraint makes
// re-ingesting the same window a no-op; dedup lives here, not upstream.
func (r *Repository) InsertPunches(ctx context.Context, entries []LogEntry) (int, error) {
	stored := 0
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO attendance_logs (id, terminal_addr, device_user_id, name, card, role, punched_at, punch_type, check_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (terminal_addr, device_user_id, punched_at) DO NOTHING
		`, e.ID, e.TerminalAddr, e.DeviceUserID, e.Name, e.Card, e.Role, e.PunchedAt, e.PunchType, e.CheckStatus)
		if err != nil {
			return stored, err
		}
		if n, err := res.RowsAffected(); err == nil {
			stored += int(n)
		}
	}
	return stored, nil
}

// ListLogs returns stored punches newest first with paging and an optional
// terminal filter, plus the unpaged total.
func (r *Repository) ListLogs(ctx context.Context, terminalAddr string, page, pageSize int) ([]LogEntry, int, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 100
	}

	countQuery := `SELECT COUNT(*) FROM attendance_logs`
	listQuery := `
		SELECT id, terminal_addr, device_user_id, name, card, role, punched_at, punch_type, check_status, created_at
		FROM attendance_logs`
	args := []any{}
	if terminalAddr != "" {
		countQuery += ` WHERE terminal_addr = $1`
		listQuery += ` WHERE terminal_addr = $1`
		args = append(args, terminalAddr)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	listQuery += ` ORDER BY punched_at DESC LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.TerminalAddr, &e.DeviceUserID, &e.Name, &e.Card, &e.Role, &e.PunchedAt, &e.PunchType, &e.CheckStatus, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// ListDay returns every punch for one calendar day, oldest first, optionally
// filtered to one terminal. Used by the late-arrival report.
func (r *Repository) ListDay(ctx context.Context, terminalAddr string, day time.Time) ([]LogEntry, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	query := `
		SELECT id, terminal_addr, device_user_id, name, card, role, punched_at, punch_type, check_status, created_at
		FROM attendance_logs
		WHERE punched_at >= $1 AND punched_at < $2`
	args := []any{start, end}
	if terminalAddr != "" {
		query += ` AND terminal_addr = $3`
		args = append(args, terminalAddr)
	}
	query += ` ORDER BY punched_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.TerminalAddr, &e.DeviceUserID, &e.Name, &e.Card, &e.Role, &e.PunchedAt, &e.PunchType, &e.CheckStatus, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, subject, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (subject, token, expires_at)
		VALUES ($1, $2, $3)
	`, subject, token, expiresAt)
	return err
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}

func itoa(i int) string { return strconv.Itoa(i) }
