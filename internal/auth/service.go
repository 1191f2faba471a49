package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mwhitfield/saasdash/internal/email"
	"github.com/mwhitfield/saasdash/internal/model"
	"github.com/mwhitfield/saasdash/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Config controls identity behavior.
type Config struct {
	// RequireEmailConfirmation delays session creation on sign-up until the
	// user follows the emailed confirmation link.
	RequireEmailConfirmation bool
}

// SignUpResult is the outcome of a sign-up attempt. When confirmation is
// required no session is returned and Message carries the instruction to show
// the user.
type SignUpResult struct {
	User                 *model.Account
	Session              *model.Session
	ConfirmationRequired bool
	Message              string
}

// Service is the identity provider: it owns credentials and sessions and
// publishes session changes to subscribers. The most recently created or
// destroyed session is mirrored as the provider's current session.
type Service struct {
	cfg      Config
	accounts *store.AccountStore
	sessions *store.SessionStore
	email    *email.Client
	logger   *slog.Logger

	mu          sync.RWMutex
	current     *model.Session
	subscribers map[int]func(*model.Session)
	nextSubID   int
}

func NewService(cfg Config, accounts *store.AccountStore, sessions *store.SessionStore, ec *email.Client, logger *slog.Logger) *Service {
	return &Service{
		cfg:         cfg,
		accounts:    accounts,
		sessions:    sessions,
		email:       ec,
		logger:      logger,
		subscribers: make(map[int]func(*model.Session)),
	}
}

// GetSession returns the provider's current session, or nil.
func (s *Service) GetSession() *model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// CurrentUser returns the account behind the current session, or nil.
func (s *Service) CurrentUser() (*model.Account, error) {
	sess := s.GetSession()
	if sess == nil {
		return nil, nil
	}
	return s.accounts.GetByID(sess.UserID)
}

// OnSessionChange registers a callback invoked on every session transition.
// The returned function unsubscribes the callback.
func (s *Service) OnSessionChange(fn func(*model.Session)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// notify records sess as current and fans it out to subscribers. Callbacks run
// outside the lock; the last notification wins.
func (s *Service) notify(sess *model.Session) {
	s.mu.Lock()
	s.current = sess
	fns := make([]func(*model.Session), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(sess)
	}
}

// SignInWithPassword verifies credentials and opens a session.
func (s *Service) SignInWithPassword(emailAddr, password string) (*model.Session, error) {
	account, hash, err := s.accounts.GetByEmail(emailAddr)
	if err != nil {
		return nil, fmt.Errorf("look up account: %w", err)
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !account.Confirmed {
		return nil, ErrEmailNotConfirmed
	}

	sess, err := s.sessions.Create(account.ID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.notify(sess)
	return sess, nil
}

// SignUp creates an account with name attached as metadata. When email
// confirmation is required the account stays unconfirmed, a confirmation link
// is sent, and no session is opened.
func (s *Service) SignUp(emailAddr, password, name string) (*SignUpResult, error) {
	existing, _, err := s.accounts.GetByEmail(emailAddr)
	if err != nil {
		return nil, fmt.Errorf("look up account: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account, err := s.accounts.Create(uuid.NewString(), emailAddr, name, string(hash), !s.cfg.RequireEmailConfirmation)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	if s.cfg.RequireEmailConfirmation {
		token, err := newToken()
		if err != nil {
			return nil, err
		}
		if err := s.accounts.SetConfirmToken(account.ID, token); err != nil {
			return nil, fmt.Errorf("store confirm token: %w", err)
		}

		if s.email != nil && s.email.Configured() {
			if err := s.email.SendConfirmation(emailAddr, token); err != nil {
				s.logger.Error("send confirmation email", "email", emailAddr, "error", err)
			}
		} else {
			s.logger.Info("confirmation token generated", "email", emailAddr, "token", token)
		}

		return &SignUpResult{User: account, ConfirmationRequired: true}, nil
	}

	sess, err := s.sessions.Create(account.ID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.notify(sess)
	return &SignUpResult{User: account, Session: sess}, nil
}

// ConfirmEmail redeems a confirmation token and opens a session.
func (s *Service) ConfirmEmail(token string) (*model.Session, error) {
	account, err := s.accounts.Confirm(token)
	if err != nil {
		return nil, fmt.Errorf("confirm account: %w", err)
	}
	if account == nil {
		return nil, ErrInvalidToken
	}

	sess, err := s.sessions.Create(account.ID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.notify(sess)
	return sess, nil
}

// SignOut terminates the session for the given token.
func (s *Service) SignOut(token string) error {
	if err := s.sessions.DeleteByToken(token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.notify(nil)
	return nil
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
