package selections

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"reviewflow/internal/domain/auth"
	"reviewflow/internal/platform/config"
	"reviewflow/internal/platform/db"
	"reviewflow/migrations"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, config.Config{DatabaseURL: dbURL})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := db.Migrate(ctx, pool, migrations.Files); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func insertUser(t *testing.T, pool *pgxpool.Pool, role string) string {
	t.Helper()
	var id string
	email := fmt.Sprintf("store-%d@test.local", time.Now().UnixNano())
	if err := pool.QueryRow(context.Background(), `
    INSERT INTO users (email, name, role, password_hash) VALUES ($1, $1, $2, 'x') RETURNING id::text
  `, email, role).Scan(&id); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DELETE FROM users WHERE id = $1::uuid", id)
	})
	return id
}

// insertCycle creates an inactive cycle so other suites sharing the
// database keep their active one.
func insertCycle(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	var id string
	if err := pool.QueryRow(context.Background(), `
    INSERT INTO performance_cycles (name, start_date, end_date, status)
    VALUES ('store test', '2024-01-01', '2024-06-30', 'inactive') RETURNING id::text
  `).Scan(&id); err != nil {
		t.Fatalf("insert cycle: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DELETE FROM performance_cycles WHERE id = $1::uuid", id)
	})
	return id
}

func TestStoreConcurrentReviewHasOneWinner(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	store := NewStore(pool)

	cycleID := insertCycle(t, pool)
	menteeID := insertUser(t, pool, auth.RoleEmployee)
	mentorID := insertUser(t, pool, auth.RoleMentor)
	reviewerID := insertUser(t, pool, auth.RolePeopleCommittee)

	sel, err := store.Insert(ctx, Selection{
		PerformanceCycleID: cycleID,
		MenteeID:           menteeID,
		Status:             StatusPending,
		ReviewerIDs:        []string{reviewerID},
	})
	if err != nil {
		t.Fatalf("insert selection: %v", err)
	}

	const racers = 8
	errs := make([]error, racers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			review := Review{Status: StatusApproved, ReviewedBy: mentorID}
			if i%2 == 1 {
				review = Review{Status: StatusSentBack, ReviewedBy: mentorID, MentorFeedback: "add one more reviewer", RequiredChanges: []string{"add a reviewer"}}
			}
			<-start
			_, errs[i] = store.Review(ctx, sel.ID, review)
		}()
	}
	close(start)
	wg.Wait()

	winners := 0
	for i, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrStateChanged):
		default:
			t.Fatalf("racer %d: unexpected error %v", i, err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one review to win, got %d", winners)
	}

	after, err := store.Get(ctx, sel.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.Status == StatusPending {
		t.Fatal("expected selection to leave pending")
	}
	if err := store.DeletePending(ctx, sel.ID); !errors.Is(err, ErrStateChanged) {
		t.Fatalf("expected delete of reviewed selection to fail with state changed, got %v", err)
	}
}

func TestStoreMalformedIDIsNotFound(t *testing.T) {
	pool := testPool(t)
	store := NewStore(pool)
	ctx := context.Background()

	if _, err := store.Get(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for malformed id, got %v", err)
	}
	if err := store.DeletePending(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for malformed id, got %v", err)
	}
	if _, err := store.Get(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
}
