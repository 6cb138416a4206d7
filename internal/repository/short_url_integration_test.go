//go:build integration

package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"

	"github.com/penshort/shortlytics/internal/testutil"
)

func TestIntegrationShortURL_CreateAndGet(t *testing.T) {
	ctx, repo := newShortURLTestEnv(t)

	alias := testutil.UniqueAlias("create")
	s := testutil.NewTestShortURL(t, alias, "owner-1")
	topic := "tech"
	s.Topic = &topic

	if err := repo.CreateShortURL(ctx, s); err != nil {
		t.Fatalf("CreateShortURL failed: %v", err)
	}
	if s.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set from the database")
	}

	got, err := repo.GetShortURLByAlias(ctx, alias)
	if err != nil {
		t.Fatalf("GetShortURLByAlias failed: %v", err)
	}
	if got.LongURL != s.LongURL || got.OwnerID != "owner-1" {
		t.Errorf("unexpected short url: %+v", got)
	}
	if got.Topic == nil || *got.Topic != "tech" {
		t.Errorf("Topic = %v, want tech", got.Topic)
	}

	aliases, err := repo.ListAliasesByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("ListAliasesByOwner failed: %v", err)
	}
	if len(aliases) != 1 || aliases[0] != alias {
		t.Errorf("aliases = %v, want [%s]", aliases, alias)
	}
}

func TestIntegrationShortURL_GetMissing(t *testing.T) {
	ctx, repo := newShortURLTestEnv(t)

	_, err := repo.GetShortURLByAlias(ctx, "zzz000")
	if !errors.Is(err, ErrShortURLNotFound) {
		t.Fatalf("expected ErrShortURLNotFound, got %v", err)
	}

	exists, err := repo.AliasExists(ctx, "zzz000")
	if err != nil {
		t.Fatalf("AliasExists failed: %v", err)
	}
	if exists {
		t.Error("expected alias not to exist")
	}
}

func TestIntegrationShortURL_ConcurrentCustomAlias(t *testing.T) {
	ctx, repo := newShortURLTestEnv(t)

	alias := testutil.UniqueAlias("race")
	const writers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := testutil.NewTestShortURL(t, alias, "owner-race")
			s.ID = ulid.Make().String()
			err := repo.CreateShortURL(ctx, s)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrAliasExists):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if successes != 1 || conflicts != writers-1 {
		t.Fatalf("successes=%d conflicts=%d, want 1 and %d", successes, conflicts, writers-1)
	}
}

func TestIntegrationClickEvent_Insert(t *testing.T) {
	ctx, repo := newShortURLTestEnv(t)

	alias := testutil.UniqueAlias("click")
	if err := repo.CreateShortURL(ctx, testutil.NewTestShortURL(t, alias, "owner-1")); err != nil {
		t.Fatalf("CreateShortURL failed: %v", err)
	}

	if err := repo.InsertClickEvent(ctx, testutil.NewTestClickEvent(t, alias, "10.0.0.1")); err != nil {
		t.Fatalf("InsertClickEvent failed: %v", err)
	}

	err := repo.InsertClickEvent(ctx, testutil.NewTestClickEvent(t, "missing01", "10.0.0.1"))
	if !errors.Is(err, ErrShortURLNotFound) {
		t.Fatalf("expected ErrShortURLNotFound for unknown alias, got %v", err)
	}
}

func newShortURLTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, dbURL); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, repo
}
