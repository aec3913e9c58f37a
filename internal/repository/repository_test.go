package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"myauth/internal/db"
	"myauth/internal/model"
)

func openTestDB(t *testing.T) *pgxpool.Pool {
	url := os.Getenv("MYAUTH_TEST_DB")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		t.Skip("MYAUTH_TEST_DB or DATABASE_URL not set")
		return nil
	}
	if err := db.Migrate(url); err != nil {
		t.Skipf("migrate failed: %v", err)
		return nil
	}
	pool, err := db.NewPool(context.Background(), url)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
		return nil
	}
	return pool
}

func testEmail() string {
	return fmt.Sprintf("it-%s@example.com", uuid.NewString())
}

func TestSessionLifecycle(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	store := NewStore(pool)
	ctx := context.Background()

	email := testEmail()
	userID, err := store.UpsertUser(ctx, email, model.RoleUser)
	if err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	token, err := store.CreateSession(ctx, userID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	user, err := store.ResolveSession(ctx, token)
	if err != nil {
		t.Fatalf("resolve session: %v", err)
	}
	if user.ID != userID || user.Email != email {
		t.Fatalf("resolved wrong user: %+v", user)
	}
	if user.Role != model.RoleUser {
		t.Fatalf("expected role user, got %s", user.Role)
	}

	sessions, err := store.ListSessionsByUser(ctx, userID)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Token != token {
		t.Fatalf("expected the created session, got %+v", sessions)
	}

	if err := store.DeleteSession(ctx, token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := store.ResolveSession(ctx, token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	// Deleting again is a no-op.
	if err := store.DeleteSession(ctx, token); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestExpiredSessionRejectedAndSwept(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	store := NewStore(pool)
	ctx := context.Background()

	userID, err := store.UpsertUser(ctx, testEmail(), model.RoleUser)
	if err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	expired, err := store.CreateSession(ctx, userID, -time.Minute)
	if err != nil {
		t.Fatalf("create expired session: %v", err)
	}
	live, err := store.CreateSession(ctx, userID, time.Hour)
	if err != nil {
		t.Fatalf("create live session: %v", err)
	}

	// Expiry is enforced on resolution, sweep or not.
	if _, err := store.ResolveSession(ctx, expired); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for expired token, got %v", err)
	}

	removed, err := store.SweepExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed < 1 {
		t.Fatalf("expected at least one swept row, got %d", removed)
	}

	if _, err := store.ResolveSession(ctx, live); err != nil {
		t.Fatalf("live session must survive the sweep: %v", err)
	}
}

func TestUpsertRoleEscalatesNeverDowngrades(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	store := NewStore(pool)
	ctx := context.Background()

	email := testEmail()
	id1, err := store.UpsertUser(ctx, email, model.RoleUser)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Same email escalates to admin.
	id2, err := store.UpsertUser(ctx, email, model.RoleAdmin)
	if err != nil {
		t.Fatalf("escalating upsert: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("upsert must be stable per email: %s vs %s", id1, id2)
	}
	user, err := store.GetUserByID(ctx, id1)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Role != model.RoleAdmin {
		t.Fatalf("expected admin after escalation, got %s", user.Role)
	}

	// A later plain sign-in never downgrades.
	if _, err := store.UpsertUser(ctx, email, model.RoleUser); err != nil {
		t.Fatalf("downgrading upsert: %v", err)
	}
	user, err = store.GetUserByID(ctx, id1)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Role != model.RoleAdmin {
		t.Fatalf("role was downgraded to %s", user.Role)
	}
}

func TestDeactivatedUserDoesNotResolve(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	store := NewStore(pool)
	ctx := context.Background()

	userID, err := store.UpsertUser(ctx, testEmail(), model.RoleUser)
	if err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	token, err := store.CreateSession(ctx, userID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if _, err := store.SetUserActive(ctx, userID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := store.ResolveSession(ctx, token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for deactivated user, got %v", err)
	}

	// Reactivation restores the still-valid session.
	if _, err := store.SetUserActive(ctx, userID, true); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if _, err := store.ResolveSession(ctx, token); err != nil {
		t.Fatalf("expected resolution after reactivation: %v", err)
	}

	if _, err := store.SetUserActive(ctx, uuid.NewString(), true); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCountUsersByRole(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	store := NewStore(pool)
	ctx := context.Background()

	before, err := store.CountUsersByRole(ctx, model.RoleAdmin)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if _, err := store.UpsertUser(ctx, testEmail(), model.RoleAdmin); err != nil {
		t.Fatalf("upsert admin: %v", err)
	}
	after, err := store.CountUsersByRole(ctx, model.RoleAdmin)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if after != before+1 {
		t.Fatalf("expected admin count to grow by one: %d -> %d", before, after)
	}
}
