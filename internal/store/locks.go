package store

import (
	"context"
	"database/sql"
	"fmt"
)

const lockColumns = `id, user_id, title, message, is_public, scan_count, created_at, updated_at`

func (s *Store) CreateLock(ctx context.Context, l *Lock) error {
	now := s.timestamp()
	var id int64
	err := s.db.GetContext(ctx, &id, s.q(`
		INSERT INTO locks (user_id, title, message, is_public, scan_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		RETURNING id`),
		l.UserID, l.Title, l.Message, l.IsPublic, now, now)
	if err != nil {
		return mapErr("create lock", err)
	}
	l.ID = id
	l.ScanCount = 0
	l.CreatedAt = now
	l.UpdatedAt = now
	return nil
}

func (s *Store) GetLock(ctx context.Context, id int64) (*Lock, error) {
	var l Lock
	err := s.db.GetContext(ctx, &l, s.q(`SELECT `+lockColumns+` FROM locks WHERE id = ?`), id)
	if err != nil {
		return nil, mapErr("get lock", err)
	}
	return &l, nil
}

// UpdateLock writes title, message and visibility. Owner and scan count
// are not changed.
func (s *Store) UpdateLock(ctx context.Context, l *Lock) error {
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE locks SET title = ?, message = ?, is_public = ?, updated_at = ? WHERE id = ?`),
		l.Title, l.Message, l.IsPublic, now, l.ID)
	if err != nil {
		return mapErr("update lock", err)
	}
	if err := expectOne("update lock", res); err != nil {
		return err
	}
	l.UpdatedAt = now
	return nil
}

func (s *Store) DeleteLock(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM locks WHERE id = ?`), id)
	if err != nil {
		return mapErr("delete lock", err)
	}
	return expectOne("delete lock", res)
}

// ListLocksByUser returns the user's locks, newest first. A user without
// locks yields an empty slice; an unknown user yields ErrNotFound.
func (s *Store) ListLocksByUser(ctx context.Context, userID int64) ([]Lock, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	locks := []Lock{}
	err := s.db.SelectContext(ctx, &locks, s.q(`
		SELECT `+lockColumns+` FROM locks WHERE user_id = ? ORDER BY created_at DESC, id DESC`), userID)
	if err != nil {
		return nil, mapErr("list locks by user", err)
	}
	return locks, nil
}

func (s *Store) ListLocks(ctx context.Context, limit, offset int) ([]Lock, error) {
	locks := []Lock{}
	err := s.db.SelectContext(ctx, &locks, s.q(`
		SELECT `+lockColumns+` FROM locks ORDER BY id LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, mapErr("list locks", err)
	}
	return locks, nil
}

func (s *Store) CountLocks(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM locks`); err != nil {
		return 0, mapErr("count locks", err)
	}
	return n, nil
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.GetContext(ctx, &st, `
		SELECT
			(SELECT COUNT(*) FROM users) AS users,
			(SELECT COUNT(*) FROM locks) AS locks,
			(SELECT COUNT(*) FROM media) AS media,
			(SELECT CAST(COALESCE(SUM(scan_count), 0) AS BIGINT) FROM locks) AS scans`)
	if err != nil {
		return Stats{}, mapErr("stats", err)
	}
	return st, nil
}

func expectOne(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
