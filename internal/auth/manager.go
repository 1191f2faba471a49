package auth

import (
	"log/slog"
	"sync"

	"github.com/mwhitfield/saasdash/internal/model"
)

const confirmEmailMessage = "Please check your email to confirm your account"

// SessionSource is the slice of the identity provider the Manager consumes.
type SessionSource interface {
	GetSession() *model.Session
	OnSessionChange(fn func(*model.Session)) func()
	SignInWithPassword(email, password string) (*model.Session, error)
	SignUp(email, password, name string) (*SignUpResult, error)
	SignOut(token string) error
}

// ProfileWriter creates or updates profile records.
type ProfileWriter interface {
	Upsert(id, name, email string, prefs model.NotificationPreferences) (*model.Profile, error)
}

// Manager mirrors the identity provider's current session into observable
// process-local state. Reads return a snapshot; every provider notification
// overwrites it, last write wins.
type Manager struct {
	source   SessionSource
	profiles ProfileWriter
	logger   *slog.Logger

	mu      sync.RWMutex
	session *model.Session
	loading bool

	unsubscribe func()
}

func NewManager(source SessionSource, profiles ProfileWriter, logger *slog.Logger) *Manager {
	return &Manager{
		source:   source,
		profiles: profiles,
		logger:   logger,
		loading:  true,
	}
}

// Initialize fetches the current session once and subscribes to session
// changes for the life of the manager.
func (m *Manager) Initialize() {
	sess := m.source.GetSession()
	m.mu.Lock()
	m.session = sess
	m.loading = false
	m.mu.Unlock()

	m.unsubscribe = m.source.OnSessionChange(func(sess *model.Session) {
		m.mu.Lock()
		m.session = sess
		m.mu.Unlock()
	})
}

// Close drops the session-change subscription.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// CurrentSession returns the mirrored session, or nil when signed out.
func (m *Manager) CurrentSession() *model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Loading reports whether the initial session fetch has completed.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// SignIn attempts a credential sign-in. On success the provider's
// notification updates the mirrored state.
func (m *Manager) SignIn(email, password string) (*model.Session, error) {
	return m.source.SignInWithPassword(email, password)
}

// SignUp creates an account and, as a side effect, a profile record with
// default notification preferences. A profile failure is logged but does not
// fail the sign-up: the account already exists at the provider.
func (m *Manager) SignUp(email, password, name string) (*SignUpResult, error) {
	result, err := m.source.SignUp(email, password, name)
	if err != nil {
		return nil, err
	}

	if _, perr := m.profiles.Upsert(result.User.ID, name, email, model.DefaultNotificationPreferences()); perr != nil {
		m.logger.Error("create profile after signup", "user_id", result.User.ID, "error", perr)
	}

	if result.ConfirmationRequired {
		result.Message = confirmEmailMessage
	}
	return result, nil
}

// SignOut terminates the mirrored session, if any.
func (m *Manager) SignOut() error {
	sess := m.CurrentSession()
	if sess == nil {
		return nil
	}
	return m.source.SignOut(sess.Token)
}
