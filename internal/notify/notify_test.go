package notify

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mwhitfield/saasdash/internal/database"
	"github.com/mwhitfield/saasdash/internal/email"
	"github.com/mwhitfield/saasdash/internal/model"
	"github.com/mwhitfield/saasdash/internal/store"
)

// rewriteTransport redirects all requests to a test server URL.
type rewriteTransport struct {
	base   http.RoundTripper
	target string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.target[len("http://"):]
	return t.base.RoundTrip(req)
}

func setupNotifier(t *testing.T) (*Notifier, *store.ProfileStore, *int) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	emails := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		emails++
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	httpClient := &http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: srv.URL}}
	ec := email.NewClient("test-token", "noreply@example.com", "https://dash.example.com", email.WithHTTPClient(httpClient))

	profiles := store.NewProfileStore(db)
	pushSubs := store.NewPushStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewNotifier(profiles, pushSubs, nil, ec, logger), profiles, &emails
}

func TestSubscriptionActivatedHonorsEmailPreference(t *testing.T) {
	n, profiles, emails := setupNotifier(t)

	if _, err := profiles.Create("u1", "Ada", "ada@example.com", model.PlanPro); err != nil {
		t.Fatalf("create profile: %v", err)
	}

	n.SubscriptionActivated("u1", "pro")
	if *emails != 1 {
		t.Errorf("emails sent = %d, want 1", *emails)
	}

	// Opting out of email notifications stops delivery.
	if _, err := profiles.Upsert("u1", "Ada", "ada@example.com",
		model.NotificationPreferences{Email: false}); err != nil {
		t.Fatalf("update preferences: %v", err)
	}
	n.SubscriptionActivated("u1", "pro")
	if *emails != 1 {
		t.Errorf("emails sent = %d after opt-out, want 1", *emails)
	}
}

func TestPaymentFailedUnknownUser(t *testing.T) {
	n, _, emails := setupNotifier(t)

	// No profile: nothing to deliver, nothing to crash.
	n.PaymentFailed("ghost", "pro")
	if *emails != 0 {
		t.Errorf("emails sent = %d, want 0", *emails)
	}
}
