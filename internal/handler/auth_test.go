package handler

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mwhitfield/saasdash/internal/auth"
	"github.com/mwhitfield/saasdash/internal/database"
	"github.com/mwhitfield/saasdash/internal/middleware"
	"github.com/mwhitfield/saasdash/internal/store"
)

func setupAuthHandler(t *testing.T, requireConfirmation bool) (*AuthHandler, *store.ProfileStore, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	accounts := store.NewAccountStore(db)
	sessions := store.NewSessionStore(db)
	profiles := store.NewProfileStore(db)
	logger := discardLogger()

	service := auth.NewService(auth.Config{RequireEmailConfirmation: requireConfirmation}, accounts, sessions, nil, logger)
	manager := auth.NewManager(service, profiles, logger)
	manager.Initialize()
	t.Cleanup(manager.Close)

	return NewAuthHandler(manager, service, sessions, nil, logger), profiles, db
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestSignUpReturnsSessionAndProfile(t *testing.T) {
	h, profiles, _ := setupAuthHandler(t, false)

	req := httptest.NewRequest("POST", "/api/auth/signup",
		strings.NewReader(`{"email": "ada@example.com", "password": "secret123", "name": "Ada"}`))
	w := httptest.NewRecorder()
	h.SignUp(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
	cookie := sessionCookie(w)
	if cookie == nil || cookie.Value == "" {
		t.Error("expected a session cookie")
	}

	var resp struct {
		Session struct {
			UserID string `json:"user_id"`
			Email  string `json:"email"`
		} `json:"session"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Session.Email != "ada@example.com" {
		t.Errorf("session email = %q, want ada@example.com", resp.Session.Email)
	}

	p, err := profiles.GetByID(resp.Session.UserID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p == nil {
		t.Fatal("expected a profile after sign-up")
	}
	if !p.Preferences.Email || p.Preferences.Push || !p.Preferences.Marketing {
		t.Errorf("preferences = %+v, want defaults email/marketing on, push off", p.Preferences)
	}
}

func TestSignUpConfirmationRequired(t *testing.T) {
	h, _, _ := setupAuthHandler(t, true)

	req := httptest.NewRequest("POST", "/api/auth/signup",
		strings.NewReader(`{"email": "ada@example.com", "password": "secret123"}`))
	w := httptest.NewRecorder()
	h.SignUp(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if sessionCookie(w) != nil {
		t.Error("expected no session cookie before confirmation")
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["message"] != "Please check your email to confirm your account" {
		t.Errorf("message = %q, want the check-your-email instruction", resp["message"])
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	h, _, _ := setupAuthHandler(t, false)

	body := `{"email": "ada@example.com", "password": "secret123"}`
	w := httptest.NewRecorder()
	h.SignUp(w, httptest.NewRequest("POST", "/api/auth/signup", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("first signup: status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	h.SignUp(w, httptest.NewRequest("POST", "/api/auth/signup", strings.NewReader(body)))
	if w.Code != http.StatusConflict {
		t.Errorf("second signup: status = %d, want 409", w.Code)
	}
}

func TestSignUpMissingFields(t *testing.T) {
	h, _, _ := setupAuthHandler(t, false)

	for _, body := range []string{
		`{}`,
		`{"email": "ada@example.com"}`,
		`{"password": "secret123"}`,
		`{"email": "  ", "password": "secret123"}`,
	} {
		w := httptest.NewRecorder()
		h.SignUp(w, httptest.NewRequest("POST", "/api/auth/signup", strings.NewReader(body)))
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, w.Code)
		}
	}
}

func TestSignInAndSession(t *testing.T) {
	h, _, _ := setupAuthHandler(t, false)

	w := httptest.NewRecorder()
	h.SignUp(w, httptest.NewRequest("POST", "/api/auth/signup",
		strings.NewReader(`{"email": "ada@example.com", "password": "secret123"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("signup: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.SignIn(w, httptest.NewRequest("POST", "/api/auth/signin",
		strings.NewReader(`{"email": "ada@example.com", "password": "secret123"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("signin: status = %d, want 200", w.Code)
	}
	cookie := sessionCookie(w)
	if cookie == nil {
		t.Fatal("expected a session cookie")
	}

	req := httptest.NewRequest("GET", "/api/auth/session", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	h.Session(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("session: status = %d, want 200", w.Code)
	}
	var resp struct {
		Session *struct {
			Email string `json:"email"`
		} `json:"session"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Session == nil || resp.Session.Email != "ada@example.com" {
		t.Errorf("session = %+v, want ada's session", resp.Session)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	h, _, _ := setupAuthHandler(t, false)

	w := httptest.NewRecorder()
	h.SignUp(w, httptest.NewRequest("POST", "/api/auth/signup",
		strings.NewReader(`{"email": "ada@example.com", "password": "secret123"}`)))

	w = httptest.NewRecorder()
	h.SignIn(w, httptest.NewRequest("POST", "/api/auth/signin",
		strings.NewReader(`{"email": "ada@example.com", "password": "wrong"}`)))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestSessionWithoutCookie(t *testing.T) {
	h, _, _ := setupAuthHandler(t, false)

	w := httptest.NewRecorder()
	h.Session(w, httptest.NewRequest("GET", "/api/auth/session", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["session"] != nil {
		t.Errorf("session = %v, want null", resp["session"])
	}
}

func TestSignOutInvalidatesSession(t *testing.T) {
	h, _, _ := setupAuthHandler(t, false)

	w := httptest.NewRecorder()
	h.SignUp(w, httptest.NewRequest("POST", "/api/auth/signup",
		strings.NewReader(`{"email": "ada@example.com", "password": "secret123"}`)))
	cookie := sessionCookie(w)
	if cookie == nil {
		t.Fatal("expected a session cookie after signup")
	}

	req := httptest.NewRequest("POST", "/api/auth/signout", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	h.SignOut(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("signout: status = %d, want 200", w.Code)
	}
	cleared := sessionCookie(w)
	if cleared == nil || cleared.MaxAge != -1 {
		t.Error("expected the session cookie to be cleared")
	}

	req = httptest.NewRequest("GET", "/api/auth/session", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	h.Session(w, req)
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["session"] != nil {
		t.Errorf("session = %v, want null after sign-out", resp["session"])
	}
}

func TestConfirmRedirectsToSettings(t *testing.T) {
	h, _, db := setupAuthHandler(t, true)

	w := httptest.NewRecorder()
	h.SignUp(w, httptest.NewRequest("POST", "/api/auth/signup",
		strings.NewReader(`{"email": "ada@example.com", "password": "secret123"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("signup: status = %d", w.Code)
	}

	// Bad token first.
	w = httptest.NewRecorder()
	h.Confirm(w, httptest.NewRequest("GET", "/auth/confirm?token=bogus", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bogus token: status = %d, want 400", w.Code)
	}

	var token string
	if err := db.QueryRow(`SELECT confirm_token FROM accounts WHERE email = ?`, "ada@example.com").Scan(&token); err != nil {
		t.Fatalf("read confirm token: %v", err)
	}

	w = httptest.NewRecorder()
	h.Confirm(w, httptest.NewRequest("GET", "/auth/confirm?token="+token, nil))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/settings" {
		t.Errorf("location = %q, want /settings", loc)
	}
	if sessionCookie(w) == nil {
		t.Error("expected a session cookie after confirmation")
	}
}
