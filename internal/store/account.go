package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mwhitfield/saasdash/internal/model"
)

type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func scanAccount(scanner interface{ Scan(...any) error }) (*model.Account, string, error) {
	var a model.Account
	var passwordHash string
	var confirmed int
	var confirmToken sql.NullString
	err := scanner.Scan(&a.ID, &a.Email, &a.Name, &passwordHash, &confirmed, &confirmToken, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, "", err
	}
	a.Confirmed = confirmed != 0
	return &a, passwordHash, nil
}

const accountCols = `id, email, name, password_hash, confirmed, confirm_token, created_at, updated_at`

// Create inserts a new account. The caller supplies the already-hashed password.
func (s *AccountStore) Create(id, email, name, passwordHash string, confirmed bool) (*model.Account, error) {
	now := time.Now().UTC()
	var c int
	if confirmed {
		c = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO accounts (id, email, name, password_hash, confirmed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, email, name, passwordHash, c, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	a, _, err := s.getByID(id)
	return a, err
}

func (s *AccountStore) getByID(id string) (*model.Account, string, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE id = ?`, id)
	a, hash, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("get account: %w", err)
	}
	return a, hash, nil
}

func (s *AccountStore) GetByID(id string) (*model.Account, error) {
	a, _, err := s.getByID(id)
	return a, err
}

// GetByEmail returns the account and its password hash, or nil if not found.
func (s *AccountStore) GetByEmail(email string) (*model.Account, string, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE email = ?`, email)
	a, hash, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("get account by email: %w", err)
	}
	return a, hash, nil
}

// SetConfirmToken stores a pending email-confirmation token on the account.
func (s *AccountStore) SetConfirmToken(id, token string) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET confirm_token = ?, updated_at = ? WHERE id = ?`,
		token, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set confirm token: %w", err)
	}
	return nil
}

// Confirm marks the account matching the token as confirmed and clears the
// token. Returns nil if no account carries the token.
func (s *AccountStore) Confirm(token string) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE confirm_token = ?`, token)
	a, _, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by confirm token: %w", err)
	}

	_, err = s.db.Exec(
		`UPDATE accounts SET confirmed = 1, confirm_token = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), a.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("confirm account: %w", err)
	}
	a.Confirmed = true
	return a, nil
}

func (s *AccountStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}
