package data

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/mernchat/server/internal/db"
)

func TestUsersCreateAndLookup(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := db.New(ctx, uri)
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	defer func() { _ = c.Close(context.Background()) }()

	_ = c.UsersCollection().Drop(ctx)
	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}

	users := NewUsersStore(c.UsersCollection())

	created, err := users.CreateUser(ctx, "Alice", "hashed-password")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if created.ID.IsZero() {
		t.Fatal("CreateUser did not populate the generated id")
	}
	if created.Username != "alice" {
		t.Fatalf("expected normalized username, got %q", created.Username)
	}

	// duplicate registration (any casing) must fail with ErrUserExists
	if _, err := users.CreateUser(ctx, "ALICE", "other-hash"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	found, err := users.GetUserByUsername(ctx, "  alice ")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("lookup returned wrong user: %s != %s", found.ID.Hex(), created.ID.Hex())
	}

	if _, err := users.GetUserByUsername(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	list, err := users.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 user, got %d", len(list))
	}
	if list[0].Password != "" {
		t.Fatal("ListUsers must not project the password hash")
	}
}
