package store

import (
	"context"
)

const userColumns = `id, username, email, password_hash, is_admin, created_at, updated_at`

// CreateUser inserts u and fills its ID and timestamps.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	now := s.timestamp()
	var id int64
	err := s.db.GetContext(ctx, &id, s.q(`
		INSERT INTO users (username, email, password_hash, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`),
		u.Username, u.Email, u.PasswordHash, u.IsAdmin, now, now)
	if err != nil {
		return mapErr("create user", err)
	}
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, s.q(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		return nil, mapErr("get user", err)
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, s.q(`SELECT `+userColumns+` FROM users WHERE username = ?`), username)
	if err != nil {
		return nil, mapErr("get user by username", err)
	}
	return &u, nil
}

// UpdateUser writes every mutable column of u.
func (s *Store) UpdateUser(ctx context.Context, u *User) error {
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE users SET username = ?, email = ?, password_hash = ?, is_admin = ?, updated_at = ?
		WHERE id = ?`),
		u.Username, u.Email, u.PasswordHash, u.IsAdmin, now, u.ID)
	if err != nil {
		return mapErr("update user", err)
	}
	if err := expectOne("update user", res); err != nil {
		return err
	}
	u.UpdatedAt = now
	return nil
}

// DeleteUser removes the user and, by cascade, its locks and media.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return mapErr("delete user", err)
	}
	return expectOne("delete user", res)
}

func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	users := []User{}
	err := s.db.SelectContext(ctx, &users, s.q(`
		SELECT `+userColumns+` FROM users ORDER BY id LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, mapErr("list users", err)
	}
	return users, nil
}
