package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mwhitfield/saasdash/internal/auth"
	"github.com/mwhitfield/saasdash/internal/email"
	"github.com/mwhitfield/saasdash/internal/events"
	"github.com/mwhitfield/saasdash/internal/handler"
	"github.com/mwhitfield/saasdash/internal/middleware"
	"github.com/mwhitfield/saasdash/internal/notify"
	"github.com/mwhitfield/saasdash/internal/payments"
	"github.com/mwhitfield/saasdash/internal/store"
)

type Config struct {
	Stripe      payments.Config
	Push        PushConfig
	BaseURL     string
	EmailClient *email.Client
}

type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

type Server struct {
	db           *sql.DB
	profileStore *store.ProfileStore
	accountStore *store.AccountStore
	sessionStore *store.SessionStore
	pushStore    *store.PushStore

	authService *auth.Service
	authManager *auth.Manager
	hub         *events.Hub

	authH     *handler.AuthHandler
	checkoutH *handler.CheckoutHandler
	profileH  *handler.ProfileHandler
	usersH    *handler.UsersHandler
	statsH    *handler.StatsHandler
	pushH     *handler.PushHandler
	webhookH  *handler.WebhookHandler

	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	profileStore := store.NewProfileStore(db)
	accountStore := store.NewAccountStore(db)
	sessionStore := store.NewSessionStore(db)
	pushStore := store.NewPushStore(db)

	var stripeClient *payments.Client
	if cfg.Stripe.SecretKey != "" {
		stripeClient = payments.NewClient(cfg.Stripe)
	}

	hub := events.NewHub(logger.With("component", "events"))

	emailConfigured := cfg.EmailClient != nil && cfg.EmailClient.Configured()
	authService := auth.NewService(
		auth.Config{RequireEmailConfirmation: emailConfigured},
		accountStore, sessionStore, cfg.EmailClient,
		logger.With("component", "auth"),
	)
	authManager := auth.NewManager(authService, profileStore, logger.With("component", "auth"))
	authManager.Initialize()

	pushService := notify.NewPushService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subscriber)
	notifier := notify.NewNotifier(profileStore, pushStore, pushService, cfg.EmailClient, logger.With("component", "notify"))

	var checkoutH *handler.CheckoutHandler
	var webhookH *handler.WebhookHandler
	if stripeClient != nil {
		checkoutH = handler.NewCheckoutHandler(stripeClient, profileStore, logger.With("component", "checkout"))
		webhookH = handler.NewWebhookHandler(stripeClient, profileStore, notifier, hub, logger.With("component", "webhook"))
	} else {
		// Keep the endpoint registered so clients get a clean 503 instead of a 404.
		checkoutH = handler.NewCheckoutHandler(nil, profileStore, logger.With("component", "checkout"))
	}

	return &Server{
		db:           db,
		profileStore: profileStore,
		accountStore: accountStore,
		sessionStore: sessionStore,
		pushStore:    pushStore,
		authService:  authService,
		authManager:  authManager,
		hub:          hub,
		authH:        handler.NewAuthHandler(authManager, authService, sessionStore, hub, logger.With("component", "auth")),
		checkoutH:    checkoutH,
		profileH:     handler.NewProfileHandler(profileStore, logger.With("component", "profile")),
		usersH:       handler.NewUsersHandler(profileStore, logger.With("component", "users")),
		statsH:       handler.NewStatsHandler(profileStore, logger.With("component", "stats")),
		pushH:        handler.NewPushHandler(pushStore, pushService, logger.With("component", "push")),
		webhookH:     webhookH,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// AuthManager returns the session manager for teardown.
func (s *Server) AuthManager() *auth.Manager {
	return s.authManager
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthCheck)

	// Auth (public, rate-limited where credentials are involved)
	mux.HandleFunc("POST /api/auth/signup", s.rateLimited(s.authH.SignUp))
	mux.HandleFunc("POST /api/auth/signin", s.rateLimited(s.authH.SignIn))
	mux.HandleFunc("POST /api/auth/signout", s.authH.SignOut)
	mux.HandleFunc("GET /api/auth/session", s.authH.Session)
	mux.HandleFunc("GET /auth/confirm", s.authH.Confirm)

	// Checkout takes the user id in the body; the billing page calls it
	// before the profile may even exist.
	mux.HandleFunc("POST /api/checkout", s.rateLimited(s.checkoutH.CreateCheckoutSession))

	if s.webhookH != nil {
		mux.HandleFunc("POST /webhooks/stripe", s.webhookH.HandleStripeWebhook)
	}

	// Protected dashboard API
	authMw := middleware.RequireAuth(s.sessionStore)
	mux.Handle("GET /api/users", authMw(http.HandlerFunc(s.usersH.List)))
	mux.Handle("GET /api/stats", authMw(http.HandlerFunc(s.statsH.Get)))
	mux.Handle("GET /api/profile", authMw(http.HandlerFunc(s.profileH.Get)))
	mux.Handle("PUT /api/profile", authMw(http.HandlerFunc(s.profileH.Update)))
	mux.Handle("GET /api/push/key", authMw(http.HandlerFunc(s.pushH.VAPIDKey)))
	mux.Handle("POST /api/push/subscribe", authMw(http.HandlerFunc(s.pushH.Subscribe)))
	mux.Handle("GET /ws", authMw(events.HandleWebSocket(s.hub, s.logger.With("component", "events"))))

	return middleware.RequestLogger(s.logger)(mux)
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(h).ServeHTTP(w, r)
	}
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
