package store

import (
	"context"
	"fmt"
)

import (
	"github.com/jmoiron/sqlx"
)

const mediaColumns = `id, lock_id, url, media_type, caption, display_order, created_at`

// AddMedia appends m after the lock's last item.
func (s *Store) AddMedia(ctx context.Context, m *Media) error {
	return s.withTx(ctx, "add media", func(tx *sqlx.Tx) error {
		if err := s.lockRow(ctx, tx, m.LockID); err != nil {
			return mapErr("add media", err)
		}

		var count int
		if err := tx.GetContext(ctx, &count, tx.Rebind(`SELECT COUNT(*) FROM media WHERE lock_id = ?`), m.LockID); err != nil {
			return mapErr("add media: count", err)
		}
		if count >= MaxMediaPerLock {
			return fmt.Errorf("add media: %w (%d)", ErrMediaLimit, MaxMediaPerLock)
		}

		now := s.timestamp()
		var id int64
		err := tx.GetContext(ctx, &id, tx.Rebind(`
			INSERT INTO media (lock_id, url, media_type, caption, display_order, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id`),
			m.LockID, m.URL, m.MediaType, m.Caption, count, now)
		if err != nil {
			return mapErr("add media", err)
		}
		m.ID = id
		m.DisplayOrder = count
		m.CreatedAt = now
		return nil
	})
}

func (s *Store) GetMedia(ctx context.Context, id int64) (*Media, error) {
	var m Media
	err := s.db.GetContext(ctx, &m, s.q(`SELECT `+mediaColumns+` FROM media WHERE id = ?`), id)
	if err != nil {
		return nil, mapErr("get media", err)
	}
	return &m, nil
}

// ListMedia returns the lock's media by display order.
func (s *Store) ListMedia(ctx context.Context, lockID int64) ([]Media, error) {
	if _, err := s.GetLock(ctx, lockID); err != nil {
		return nil, err
	}
	return s.listMedia(ctx, s.db, lockID)
}

func (s *Store) listMedia(ctx context.Context, q sqlx.QueryerContext, lockID int64) ([]Media, error) {
	items := []Media{}
	err := sqlx.SelectContext(ctx, q, &items, s.q(`
		SELECT `+mediaColumns+` FROM media WHERE lock_id = ? ORDER BY display_order, id`), lockID)
	if err != nil {
		return nil, mapErr("list media", err)
	}
	return items, nil
}

// ReorderMedia sets display order to the position of each id in ids.
// ids must be a permutation of the lock's media ids.
func (s *Store) ReorderMedia(ctx context.Context, lockID int64, ids []int64) ([]Media, error) {
	var out []Media
	err := s.withTx(ctx, "reorder media", func(tx *sqlx.Tx) error {
		if err := s.lockRow(ctx, tx, lockID); err != nil {
			return mapErr("reorder media", err)
		}
		var current []int64
		if err := tx.SelectContext(ctx, &current, tx.Rebind(`SELECT id FROM media WHERE lock_id = ?`), lockID); err != nil {
			return mapErr("reorder media: load", err)
		}
		if !isPermutation(current, ids) {
			return fmt.Errorf("reorder media: %w", ErrInvalidOrder)
		}

		stmt := tx.Rebind(`UPDATE media SET display_order = ? WHERE id = ? AND lock_id = ?`)
		for pos, id := range ids {
			if _, err := tx.ExecContext(ctx, stmt, pos, id, lockID); err != nil {
				return mapErr("reorder media: update", err)
			}
		}
		items, err := s.listMedia(ctx, tx, lockID)
		if err != nil {
			return err
		}
		out = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteMedia removes one item and closes the gap it leaves.
func (s *Store) DeleteMedia(ctx context.Context, id int64) error {
	return s.withTx(ctx, "delete media", func(tx *sqlx.Tx) error {
		var m Media
		if err := tx.GetContext(ctx, &m, tx.Rebind(`SELECT `+mediaColumns+` FROM media WHERE id = ?`), id); err != nil {
			return mapErr("delete media", err)
		}
		if err := s.lockRow(ctx, tx, m.LockID); err != nil {
			return mapErr("delete media", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM media WHERE id = ?`), id); err != nil {
			return mapErr("delete media", err)
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE media SET display_order = display_order - 1
			WHERE lock_id = ? AND display_order > ?`), m.LockID, m.DisplayOrder)
		if err != nil {
			return mapErr("delete media: compact", err)
		}
		return nil
	})
}

// lockRow checks the lock exists and, on postgres, holds its row lock
// until the transaction ends so concurrent media edits serialise.
func (s *Store) lockRow(ctx context.Context, tx *sqlx.Tx, lockID int64) error {
	var id int64
	return tx.GetContext(ctx, &id, tx.Rebind(`SELECT id FROM locks WHERE id = ?`+s.forUpdate()), lockID)
}

func isPermutation(current, ids []int64) bool {
	if len(current) != len(ids) {
		return false
	}
	want := make(map[int64]bool, len(current))
	for _, id := range current {
		want[id] = true
	}
	for _, id := range ids {
		if !want[id] {
			return false
		}
		delete(want, id)
	}
	return len(want) == 0
}
