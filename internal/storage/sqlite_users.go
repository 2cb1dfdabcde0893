package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/good-yellow-bee/reportwatch/internal/models"
)

type sqliteUserRepo struct {
	db *sql.DB
}

const userColumns = `id, username, name, email, password_hash, role, active,
	permissions_json, subscriptions_json, last_login_at, created_at, updated_at`

func (r *sqliteUserRepo) Create(ctx context.Context, user *models.User) error {
	perms, subs, err := marshalUserLists(user)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Name, user.Email, user.PasswordHash, user.Role,
		boolToInt(user.Active), perms, subs, nullTime(user.LastLoginAt),
		user.CreatedAt.UTC(), user.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *sqliteUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, "id", id)
}

func (r *sqliteUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, "username", username)
}

func (r *sqliteUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email", email)
}

func (r *sqliteUserRepo) getOne(ctx context.Context, column, value string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, value))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}
	return user, nil
}

func (r *sqliteUserRepo) Update(ctx context.Context, user *models.User) error {
	perms, subs, err := marshalUserLists(user)
	if err != nil {
		return err
	}
	query := `
		UPDATE users SET username = ?, name = ?, email = ?, password_hash = ?, role = ?,
			active = ?, permissions_json = ?, subscriptions_json = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		user.Username, user.Name, user.Email, user.PasswordHash, user.Role,
		boolToInt(user.Active), perms, subs, user.UpdatedAt.UTC(),
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("user not found: %s", user.ID)
	}
	return nil
}

func (r *sqliteUserRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

func (r *sqliteUserRepo) List(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY username`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *sqliteUserRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// SetActive touches only the row of id.
func (r *sqliteUserRepo) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET active = ?, updated_at = ? WHERE id = ?",
		boolToInt(active), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

func (r *sqliteUserRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, "UPDATE users SET last_login_at = ? WHERE id = ?", nullTime(at), id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var active int
	var perms, subs string
	var lastLogin sql.NullTime
	err := row.Scan(
		&user.ID, &user.Username, &user.Name, &user.Email, &user.PasswordHash, &user.Role,
		&active, &perms, &subs, &lastLogin, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Active = active != 0
	user.LastLoginAt = timeOrZero(lastLogin)
	if err := json.Unmarshal([]byte(perms), &user.Permissions); err != nil {
		return nil, fmt.Errorf("unmarshal permissions: %w", err)
	}
	if err := json.Unmarshal([]byte(subs), &user.Subscriptions); err != nil {
		return nil, fmt.Errorf("unmarshal subscriptions: %w", err)
	}
	if user.Permissions == nil {
		user.Permissions = []string{}
	}
	if user.Subscriptions == nil {
		user.Subscriptions = []string{}
	}
	return user, nil
}

func marshalUserLists(user *models.User) (string, string, error) {
	perms := user.Permissions
	if perms == nil {
		perms = []string{}
	}
	subs := user.Subscriptions
	if subs == nil {
		subs = []string{}
	}
	p, err := json.Marshal(perms)
	if err != nil {
		return "", "", fmt.Errorf("marshal permissions: %w", err)
	}
	s, err := json.Marshal(subs)
	if err != nil {
		return "", "", fmt.Errorf("marshal subscriptions: %w", err)
	}
	return string(p), string(s), nil
}
