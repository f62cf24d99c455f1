package store

import (
	"context"
)

type albumRow struct {
	Lock
	OwnerUsername string `db:"owner_username"`
}

// FetchRecordWithChildren loads a public lock with its owner name and
// ordered media. Private or missing locks are ErrNotFound.
func (s *Store) FetchRecordWithChildren(ctx context.Context, id int64) (*Album, error) {
	var row albumRow
	err := s.db.GetContext(ctx, &row, s.q(`
		SELECT l.id, l.user_id, l.title, l.message, l.is_public, l.scan_count,
		       l.created_at, l.updated_at, u.username AS owner_username
		FROM locks l
		JOIN users u ON u.id = l.user_id
		WHERE l.id = ? AND l.is_public = ?`), id, true)
	if err != nil {
		return nil, mapErr("fetch album", err)
	}
	media, err := s.listMedia(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return &Album{Lock: row.Lock, OwnerUsername: row.OwnerUsername, Media: media}, nil
}

// IncrementViewCounter adds one scan to the lock.
func (s *Store) IncrementViewCounter(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE locks SET scan_count = scan_count + 1 WHERE id = ?`), id)
	if err != nil {
		return mapErr("increment view counter", err)
	}
	return expectOne("increment view counter", res)
}
