package store

import (
	"testing"

	"github.com/mwhitfield/saasdash/internal/database"
)

func setupAccountTestDB(t *testing.T) *AccountStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAccountStore(db)
}

func TestAccountCreateAndGetByEmail(t *testing.T) {
	as := setupAccountTestDB(t)

	a, err := as.Create("u1", "ada@example.com", "Ada", "hashed-secret", true)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if a.ID != "u1" {
		t.Errorf("id = %q, want %q", a.ID, "u1")
	}
	if !a.Confirmed {
		t.Error("expected confirmed account")
	}

	got, hash, err := as.GetByEmail("ada@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got == nil || got.ID != "u1" {
		t.Fatalf("got %+v, want account u1", got)
	}
	if hash != "hashed-secret" {
		t.Errorf("hash = %q, want %q", hash, "hashed-secret")
	}

	got, _, err = as.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get unknown email: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil account, got %+v", got)
	}
}

func TestAccountDuplicateEmail(t *testing.T) {
	as := setupAccountTestDB(t)

	if _, err := as.Create("u1", "ada@example.com", "Ada", "h1", true); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := as.Create("u2", "ada@example.com", "Other Ada", "h2", true); err == nil {
		t.Error("expected error creating duplicate email")
	}
}

func TestAccountConfirmFlow(t *testing.T) {
	as := setupAccountTestDB(t)

	a, err := as.Create("u1", "ada@example.com", "Ada", "h1", false)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if a.Confirmed {
		t.Fatal("expected unconfirmed account")
	}

	if err := as.SetConfirmToken("u1", "tok-abc"); err != nil {
		t.Fatalf("set confirm token: %v", err)
	}

	// Wrong token matches nothing.
	got, err := as.Confirm("tok-wrong")
	if err != nil {
		t.Fatalf("confirm wrong token: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for wrong token, got %+v", got)
	}

	got, err = as.Confirm("tok-abc")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got == nil || !got.Confirmed {
		t.Fatalf("got %+v, want confirmed account", got)
	}

	// The token is single-use.
	got, err = as.Confirm("tok-abc")
	if err != nil {
		t.Fatalf("confirm reuse: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for reused token, got %+v", got)
	}
}

func TestAccountDelete(t *testing.T) {
	as := setupAccountTestDB(t)

	if _, err := as.Create("u1", "ada@example.com", "Ada", "h1", true); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := as.Delete("u1"); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	got, err := as.GetByID("u1")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil account after delete, got %+v", got)
	}
}
