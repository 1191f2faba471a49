package auth

import (
	"errors"
	"testing"

	"github.com/mwhitfield/saasdash/internal/model"
)

// fakeSource is a scripted identity provider.
type fakeSource struct {
	current   *fakeSubscribers
	session   *model.Session
	signUpRes *SignUpResult
	signUpErr error
	signInErr error

	signOutTokens []string
}

type fakeSubscribers struct {
	fns []func(*model.Session)
}

func (f *fakeSource) GetSession() *model.Session { return f.session }

func (f *fakeSource) OnSessionChange(fn func(*model.Session)) func() {
	if f.current == nil {
		f.current = &fakeSubscribers{}
	}
	f.current.fns = append(f.current.fns, fn)
	return func() { f.current.fns = nil }
}

func (f *fakeSource) notify(sess *model.Session) {
	if f.current == nil {
		return
	}
	for _, fn := range f.current.fns {
		fn(sess)
	}
}

func (f *fakeSource) SignInWithPassword(email, password string) (*model.Session, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	sess := &model.Session{Token: "tok-signin", UserID: "u1", Email: email}
	f.notify(sess)
	return sess, nil
}

func (f *fakeSource) SignUp(email, password, name string) (*SignUpResult, error) {
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	return f.signUpRes, nil
}

func (f *fakeSource) SignOut(token string) error {
	f.signOutTokens = append(f.signOutTokens, token)
	f.notify(nil)
	return nil
}

// fakeProfiles records upserts and can be told to fail.
type fakeProfiles struct {
	calls []string
	err   error
}

func (f *fakeProfiles) Upsert(id, name, email string, prefs model.NotificationPreferences) (*model.Profile, error) {
	f.calls = append(f.calls, id)
	if f.err != nil {
		return nil, f.err
	}
	return &model.Profile{ID: id, Name: name, Email: email, Preferences: prefs}, nil
}

func TestManagerInitialize(t *testing.T) {
	src := &fakeSource{session: &model.Session{Token: "tok-existing", UserID: "u1"}}
	m := NewManager(src, &fakeProfiles{}, discardLogger())

	if !m.Loading() {
		t.Error("expected loading before Initialize")
	}
	m.Initialize()
	defer m.Close()

	if m.Loading() {
		t.Error("expected loading to clear after Initialize")
	}
	if got := m.CurrentSession(); got == nil || got.Token != "tok-existing" {
		t.Errorf("current session = %+v, want the provider's session", got)
	}
}

func TestManagerMirrorsSessionChanges(t *testing.T) {
	src := &fakeSource{}
	m := NewManager(src, &fakeProfiles{}, discardLogger())
	m.Initialize()
	defer m.Close()

	if got := m.CurrentSession(); got != nil {
		t.Fatalf("current session = %+v, want nil", got)
	}

	sess, err := m.SignIn("ada@example.com", "secret123")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if got := m.CurrentSession(); got == nil || got.Token != sess.Token {
		t.Errorf("current session = %+v, want the sign-in session", got)
	}

	if err := m.SignOut(); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if got := m.CurrentSession(); got != nil {
		t.Errorf("current session = %+v, want nil after sign-out", got)
	}
	if len(src.signOutTokens) != 1 || src.signOutTokens[0] != sess.Token {
		t.Errorf("sign-out tokens = %v, want the mirrored token", src.signOutTokens)
	}
}

func TestManagerSignOutWithoutSession(t *testing.T) {
	src := &fakeSource{}
	m := NewManager(src, &fakeProfiles{}, discardLogger())
	m.Initialize()
	defer m.Close()

	if err := m.SignOut(); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if len(src.signOutTokens) != 0 {
		t.Errorf("sign-out tokens = %v, want none", src.signOutTokens)
	}
}

func TestManagerSignUpCreatesProfile(t *testing.T) {
	src := &fakeSource{signUpRes: &SignUpResult{
		User:    &model.Account{ID: "u1", Email: "ada@example.com", Name: "Ada"},
		Session: &model.Session{Token: "tok-new", UserID: "u1"},
	}}
	profiles := &fakeProfiles{}
	m := NewManager(src, profiles, discardLogger())
	m.Initialize()
	defer m.Close()

	result, err := m.SignUp("ada@example.com", "secret123", "Ada")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if result.Message != "" {
		t.Errorf("message = %q, want empty without confirmation", result.Message)
	}
	if len(profiles.calls) != 1 || profiles.calls[0] != "u1" {
		t.Errorf("profile upserts = %v, want [u1]", profiles.calls)
	}
}

func TestManagerSignUpProfileFailureIsNotFatal(t *testing.T) {
	src := &fakeSource{signUpRes: &SignUpResult{
		User: &model.Account{ID: "u1", Email: "ada@example.com"},
	}}
	profiles := &fakeProfiles{err: errors.New("profiles table on fire")}
	m := NewManager(src, profiles, discardLogger())
	m.Initialize()
	defer m.Close()

	result, err := m.SignUp("ada@example.com", "secret123", "Ada")
	if err != nil {
		t.Fatalf("sign up should succeed despite profile failure, got: %v", err)
	}
	if result.User.ID != "u1" {
		t.Errorf("user = %+v, want u1", result.User)
	}
	if len(profiles.calls) != 1 {
		t.Errorf("profile upserts = %d, want the attempt to have happened", len(profiles.calls))
	}
}

func TestManagerSignUpConfirmationMessage(t *testing.T) {
	src := &fakeSource{signUpRes: &SignUpResult{
		User:                 &model.Account{ID: "u1", Email: "ada@example.com"},
		ConfirmationRequired: true,
	}}
	m := NewManager(src, &fakeProfiles{}, discardLogger())
	m.Initialize()
	defer m.Close()

	result, err := m.SignUp("ada@example.com", "secret123", "Ada")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if result.Message != confirmEmailMessage {
		t.Errorf("message = %q, want %q", result.Message, confirmEmailMessage)
	}
}

func TestManagerSignUpErrorSkipsProfile(t *testing.T) {
	src := &fakeSource{signUpErr: ErrEmailTaken}
	profiles := &fakeProfiles{}
	m := NewManager(src, profiles, discardLogger())
	m.Initialize()
	defer m.Close()

	_, err := m.SignUp("ada@example.com", "secret123", "Ada")
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("err = %v, want ErrEmailTaken", err)
	}
	if len(profiles.calls) != 0 {
		t.Errorf("profile upserts = %v, want none on failed sign-up", profiles.calls)
	}
}

func TestManagerCloseStopsMirroring(t *testing.T) {
	src := &fakeSource{}
	m := NewManager(src, &fakeProfiles{}, discardLogger())
	m.Initialize()
	m.Close()

	src.notify(&model.Session{Token: "tok-late"})
	if got := m.CurrentSession(); got != nil {
		t.Errorf("current session = %+v, want nil after Close", got)
	}
}
