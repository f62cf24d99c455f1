package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

import (
	"github.com/jmoiron/sqlx"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=on&_busy_timeout=5000"
	db, err := sqlx.Open(DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	s := New(db, WithClock(func() time.Time { return time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC) }))
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func seedUser(t *testing.T, s *Store, name string) *User {
	t.Helper()
	u := &User{Username: name, Email: name + "@example.com", PasswordHash: "hash"}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func seedLock(t *testing.T, s *Store, userID int64, public bool) *Lock {
	t.Helper()
	l := &Lock{UserID: userID, Title: "Pont des Arts", Message: "forever", IsPublic: public}
	if err := s.CreateLock(context.Background(), l); err != nil {
		t.Fatalf("create lock: %v", err)
	}
	return l
}

func seedMedia(t *testing.T, s *Store, lockID int64, n int) []Media {
	t.Helper()
	out := make([]Media, 0, n)
	for i := 0; i < n; i++ {
		m := &Media{LockID: lockID, URL: fmt.Sprintf("https://cdn.example.com/%d.jpg", i), MediaType: MediaImage}
		if err := s.AddMedia(context.Background(), m); err != nil {
			t.Fatalf("add media %d: %v", i, err)
		}
		out = append(out, *m)
	}
	return out
}

func orders(items []Media) []int {
	out := make([]int, len(items))
	for i, m := range items {
		out[i] = m.DisplayOrder
	}
	return out
}

func assertDense(t *testing.T, items []Media) {
	t.Helper()
	for i, m := range items {
		if m.DisplayOrder != i {
			t.Fatalf("display orders not dense: %v", orders(items))
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.DatabaseCfg{Driver: "mysql"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "alice")
	if u.ID == 0 || u.CreatedAt.IsZero() {
		t.Fatalf("id/timestamps not set: %+v", u)
	}

	got, err := s.GetUserByUsername(ctx, "alice")
	if err != nil || got.ID != u.ID || got.Email != "alice@example.com" {
		t.Fatalf("GetUserByUsername = %+v, %v", got, err)
	}

	dup := &User{Username: "alice", Email: "other@example.com", PasswordHash: "x"}
	if err := s.CreateUser(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate username err = %v", err)
	}

	u.Email = "alice@lovelock.app"
	u.IsAdmin = true
	if err := s.UpdateUser(ctx, u); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = s.GetUser(ctx, u.ID)
	if got.Email != "alice@lovelock.app" || !got.IsAdmin {
		t.Fatalf("after update = %+v", got)
	}

	seedUser(t, s, "bob")
	list, err := s.ListUsers(ctx, 10, 0)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListUsers = %d, %v", len(list), err)
	}
	page, _ := s.ListUsers(ctx, 1, 1)
	if len(page) != 1 || page[0].Username != "bob" {
		t.Fatalf("second page = %+v", page)
	}

	if err := s.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetUser(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted err = %v", err)
	}
	if err := s.DeleteUser(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete err = %v", err)
	}
}

func TestLockCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "carol")

	l := seedLock(t, s, u.ID, true)
	seedLock(t, s, u.ID, false)

	locks, err := s.ListLocksByUser(ctx, u.ID)
	if err != nil || len(locks) != 2 {
		t.Fatalf("ListLocksByUser = %d, %v", len(locks), err)
	}
	if _, err := s.ListLocksByUser(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user err = %v", err)
	}

	l.Title = "Hohenzollern Bridge"
	l.IsPublic = false
	if err := s.UpdateLock(ctx, l); err != nil {
		t.Fatalf("update lock: %v", err)
	}
	got, _ := s.GetLock(ctx, l.ID)
	if got.Title != "Hohenzollern Bridge" || got.IsPublic {
		t.Fatalf("after update = %+v", got)
	}

	n, err := s.CountLocks(ctx)
	if err != nil || n != 2 {
		t.Fatalf("CountLocks = %d, %v", n, err)
	}
	all, _ := s.ListLocks(ctx, 10, 0)
	if len(all) != 2 {
		t.Fatalf("ListLocks = %d", len(all))
	}

	if err := s.CreateLock(ctx, &Lock{UserID: 4242, Title: "orphan"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("lock for missing user err = %v", err)
	}

	if err := s.DeleteLock(ctx, l.ID); err != nil {
		t.Fatalf("delete lock: %v", err)
	}
	if _, err := s.GetLock(ctx, l.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted lock err = %v", err)
	}
}

func TestAddMediaAppendsAndCaps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	l := seedLock(t, s, seedUser(t, s, "dave").ID, true)

	items := seedMedia(t, s, l.ID, MaxMediaPerLock)
	assertDense(t, items)

	extra := &Media{LockID: l.ID, URL: "https://cdn.example.com/x.jpg", MediaType: MediaImage}
	if err := s.AddMedia(ctx, extra); !errors.Is(err, ErrMediaLimit) {
		t.Fatalf("21st media err = %v", err)
	}

	missing := &Media{LockID: 777, URL: "https://cdn.example.com/y.jpg", MediaType: MediaImage}
	if err := s.AddMedia(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("media for missing lock err = %v", err)
	}
}

func TestReorderMedia(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	l := seedLock(t, s, seedUser(t, s, "erin").ID, true)
	items := seedMedia(t, s, l.ID, 3)

	reordered, err := s.ReorderMedia(ctx, l.ID, []int64{items[2].ID, items[0].ID, items[1].ID})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	assertDense(t, reordered)
	if reordered[0].ID != items[2].ID || reordered[2].ID != items[1].ID {
		t.Fatalf("order = %v", []int64{reordered[0].ID, reordered[1].ID, reordered[2].ID})
	}

	bad := [][]int64{
		{items[0].ID, items[1].ID},
		{items[0].ID, items[0].ID, items[1].ID},
		{items[0].ID, items[1].ID, 99999},
	}
	for _, ids := range bad {
		if _, err := s.ReorderMedia(ctx, l.ID, ids); !errors.Is(err, ErrInvalidOrder) {
			t.Fatalf("ReorderMedia(%v) err = %v", ids, err)
		}
	}
	after, _ := s.ListMedia(ctx, l.ID)
	if after[0].ID != items[2].ID {
		t.Fatal("rejected reorder changed the order")
	}
}

func TestDeleteMediaCompactsOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	l := seedLock(t, s, seedUser(t, s, "frank").ID, true)
	items := seedMedia(t, s, l.ID, 4)

	if err := s.DeleteMedia(ctx, items[1].ID); err != nil {
		t.Fatalf("delete media: %v", err)
	}
	rest, _ := s.ListMedia(ctx, l.ID)
	if len(rest) != 3 {
		t.Fatalf("remaining = %d", len(rest))
	}
	assertDense(t, rest)
	if rest[1].ID != items[2].ID {
		t.Fatalf("relative order lost: %v", rest)
	}

	next := &Media{LockID: l.ID, URL: "https://cdn.example.com/new.mp4", MediaType: MediaVideo}
	if err := s.AddMedia(ctx, next); err != nil || next.DisplayOrder != 3 {
		t.Fatalf("append after delete = %d, %v", next.DisplayOrder, err)
	}
	if err := s.DeleteMedia(ctx, 123456); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete missing media err = %v", err)
	}
}

func TestFetchRecordWithChildren(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "grace")
	public := seedLock(t, s, u.ID, true)
	private := seedLock(t, s, u.ID, false)
	items := seedMedia(t, s, public.ID, 2)
	_, _ = s.ReorderMedia(ctx, public.ID, []int64{items[1].ID, items[0].ID})

	album, err := s.FetchRecordWithChildren(ctx, public.ID)
	if err != nil {
		t.Fatalf("fetch album: %v", err)
	}
	if album.OwnerUsername != "grace" || album.Title != public.Title {
		t.Fatalf("album = %+v", album)
	}
	if len(album.Media) != 2 || album.Media[0].ID != items[1].ID {
		t.Fatalf("album media order wrong: %+v", album.Media)
	}

	if _, err := s.FetchRecordWithChildren(ctx, private.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("private lock err = %v", err)
	}
	if _, err := s.FetchRecordWithChildren(ctx, 31337); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing lock err = %v", err)
	}
}

func TestIncrementViewCounterAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	l := seedLock(t, s, seedUser(t, s, "heidi").ID, true)
	seedMedia(t, s, l.ID, 2)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.IncrementViewCounter(ctx, l.ID); err != nil {
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.GetLock(ctx, l.ID)
	if got.ScanCount != 10 {
		t.Fatalf("ScanCount = %d", got.ScanCount)
	}
	if err := s.IncrementViewCounter(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("increment missing err = %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Users != 1 || st.Locks != 1 || st.Media != 2 || st.Scans != 10 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "ivan")
	l := seedLock(t, s, u.ID, true)
	seedMedia(t, s, l.ID, 2)

	if err := s.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := s.GetLock(ctx, l.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("lock survived cascade: %v", err)
	}
	st, _ := s.Stats(ctx)
	if st.Media != 0 {
		t.Fatalf("media survived cascade: %+v", st)
	}
}
