package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"myauth/internal/model"
)

// ErrSessionNotFound covers unknown tokens, expired sessions and sessions
// owned by a deactivated user; callers cannot tell these apart.
var ErrSessionNotFound = errors.New("session not found")

var ErrUserNotFound = errors.New("user not found")

// ErrNoUpsertRow means an email upsert returned no row. The statement
// always returns the row id, so this is an invariant violation, not a
// condition to retry.
var ErrNoUpsertRow = errors.New("user upsert returned no row")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateSession persists a new session for userID and returns its opaque
// token. The token is a v4 UUID, so no uniqueness retry is attempted.
func (s *Store) CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_sessions (id, user_id, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), userID, token, now.Add(ttl), now)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

// ResolveSession maps a token to its owning user. Only unexpired sessions
// of active users resolve. As a side effect the user's last_login is
// touched; that update is best-effort and a lost write is acceptable.
func (s *Store) ResolveSession(ctx context.Context, token string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT u.id, u.email, u.role, u.first_name, u.last_name, u.last_login,
		       u.is_active, u.created_at, u.updated_at
		FROM users u
		JOIN user_sessions s ON u.id = s.user_id
		WHERE s.token = $1 AND s.expires_at > now() AND u.is_active
	`, token)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrSessionNotFound
		}
		return model.User{}, fmt.Errorf("resolve session: %w", err)
	}

	// A lost last_login write is tolerable; resolution already succeeded.
	_, _ = s.pool.Exec(ctx, `UPDATE users SET last_login = now() WHERE id = $1`, user.ID)
	return user, nil
}

// DeleteSession removes the session for token. Deleting an unknown token
// is a no-op.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM user_sessions WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// SweepExpiredSessions bulk-deletes expired rows. The sweep is advisory:
// ResolveSession rejects expired sessions whether or not they were swept.
func (s *Store) SweepExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM user_sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListSessionsByUser returns the user's unexpired sessions, newest first.
func (s *Store) ListSessionsByUser(ctx context.Context, userID string) ([]model.Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, token, expires_at, created_at
		FROM user_sessions
		WHERE user_id = $1 AND expires_at > now()
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]model.Session, 0)
	for rows.Next() {
		var session model.Session
		if err := rows.Scan(&session.ID, &session.UserID, &session.Token, &session.ExpiresAt, &session.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// UpsertUser inserts the email with the given role or, if the email
// exists, refreshes updated_at. The role only ever moves up: an existing
// row is escalated to admin when the computed role is admin, and is never
// downgraded. Returns the row id.
func (s *Store) UpsertUser(ctx context.Context, email string, role model.Role) (string, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, now(), now())
		ON CONFLICT (email) DO UPDATE SET
			role = CASE
				WHEN excluded.role = 'admin' AND users.role <> 'admin' THEN 'admin'
				ELSE users.role
			END,
			updated_at = now()
		RETURNING id
	`, uuid.NewString(), email, string(role))

	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoUpsertRow
		}
		return "", fmt.Errorf("upsert user: %w", err)
	}
	return id, nil
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, role, first_name, last_name, last_login,
		       is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, email, role, first_name, last_name, last_login,
		       is_active, created_at, updated_at
		FROM users
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) CountUsersByRole(ctx context.Context, role model.Role) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, string(role)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// SetUserActive flips the is_active flag. Deactivation is the only way a
// user disappears from session resolution; rows are never hard-deleted.
func (s *Store) SetUserActive(ctx context.Context, userID string, active bool) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET is_active = $1, updated_at = now()
		WHERE id = $2
		RETURNING id, email, role, first_name, last_name, last_login,
		          is_active, created_at, updated_at
	`, active, userID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("set user active: %w", err)
	}
	return user, nil
}

// scanUser maps a user row onto the domain entity. The role string is
// validated here so a corrupt row surfaces as an error instead of a
// rank-zero principal.
func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	var role string
	err := row.Scan(
		&user.ID,
		&user.Email,
		&role,
		&user.FirstName,
		&user.LastName,
		&user.LastLogin,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return model.User{}, err
	}
	user.Role, err = model.ParseRole(role)
	if err != nil {
		return model.User{}, fmt.Errorf("user %s: %w", user.ID, err)
	}
	return user, nil
}
