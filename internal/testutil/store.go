package testutil

import (
	"context"
	"testing"

	"github.com/newdok/mailingest/internal/model"
	"github.com/newdok/mailingest/internal/store"
)

// NewTestStore creates an in-memory SQLStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedUser inserts a user with the given mailbox address.
func SeedUser(t *testing.T, s store.Store, address string) *model.User {
	t.Helper()

	u := &model.User{MailboxAddress: address, MailboxPassword: "secret"}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seeding user %s: %v", address, err)
	}
	return u
}

// SeedNewsletter inserts a brand.
func SeedNewsletter(t *testing.T, s store.Store, n model.Newsletter) *model.Newsletter {
	t.Helper()

	if n.BrandName == "" {
		n.BrandName = n.BrandEmail
	}
	if err := s.CreateNewsletter(context.Background(), &n); err != nil {
		t.Fatalf("seeding newsletter %s: %v", n.BrandEmail, err)
	}
	return &n
}
