package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mwhitfield/saasdash/internal/auth"
	"github.com/mwhitfield/saasdash/internal/events"
	"github.com/mwhitfield/saasdash/internal/middleware"
	"github.com/mwhitfield/saasdash/internal/model"
	"github.com/mwhitfield/saasdash/internal/store"
)

const sessionCookieMaxAge = 30 * 24 * 60 * 60

// AuthHandler exposes sign-up, sign-in, sign-out, and session retrieval.
type AuthHandler struct {
	manager  *auth.Manager
	service  *auth.Service
	sessions *store.SessionStore
	hub      *events.Hub
	logger   *slog.Logger
}

func NewAuthHandler(manager *auth.Manager, service *auth.Service, sessions *store.SessionStore, hub *events.Hub, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		manager:  manager,
		service:  service,
		sessions: sessions,
		hub:      hub,
		logger:   logger,
	}
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := h.manager.SignUp(req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		h.logger.Error("signup", "email", req.Email, "error", err)
		writeError(w, http.StatusInternalServerError, "sign-up failed")
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(events.Message{Type: events.TypeUserSignedUp, UserID: result.User.ID})
	}

	if result.ConfirmationRequired {
		writeJSON(w, http.StatusOK, map[string]string{"message": result.Message})
		return
	}

	setSessionCookie(w, result.Session.Token)
	writeJSON(w, http.StatusOK, map[string]any{"session": result.Session})
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.manager.SignIn(strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrEmailNotConfirmed) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.logger.Error("signin", "email", req.Email, "error", err)
		writeError(w, http.StatusInternalServerError, "sign-in failed")
		return
	}

	setSessionCookie(w, sess.Token)
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.service.SignOut(cookie.Value); err != nil {
			h.logger.Error("signout", "error", err)
		}
	}
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// Session returns the session behind the request cookie, or null.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	var sess *model.Session
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		s, err := h.sessions.GetByToken(cookie.Value)
		if err != nil {
			h.logger.Error("get session", "error", err)
		}
		sess = s
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}

// Confirm redeems an email-confirmation token, opens a session, and redirects
// to the settings page.
func (h *AuthHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "invalid or expired link")
		return
	}

	sess, err := h.service.ConfirmEmail(token)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidToken) {
			h.logger.Error("confirm email", "error", err)
		}
		writeError(w, http.StatusBadRequest, "invalid or expired link")
		return
	}

	setSessionCookie(w, sess.Token)
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   sessionCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
