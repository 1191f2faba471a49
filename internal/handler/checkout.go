package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mwhitfield/saasdash/internal/model"
	"github.com/mwhitfield/saasdash/internal/store"
)

// PaymentProvider is the slice of the payment processor the checkout flow uses.
type PaymentProvider interface {
	CreateCustomer(email, name, userID string) (string, error)
	CreateCheckoutSession(customerID, plan, userID string) (string, error)
}

// CheckoutHandler opens hosted checkout sessions for plan upgrades.
type CheckoutHandler struct {
	provider PaymentProvider // nil when the payment provider is not configured
	profiles *store.ProfileStore
	logger   *slog.Logger
}

func NewCheckoutHandler(provider PaymentProvider, profiles *store.ProfileStore, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		provider: provider,
		profiles: profiles,
		logger:   logger,
	}
}

type checkoutRequest struct {
	Plan   string `json:"plan"`
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

// CreateCheckoutSession ensures the user has a profile and a billing customer,
// then opens a checkout session and returns its redirect URL.
func (h *CheckoutHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		writeError(w, http.StatusServiceUnavailable, "payment provider is not configured")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Plan == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "missing required fields: plan or userId")
		return
	}
	if !model.PurchasablePlan(req.Plan) {
		writeError(w, http.StatusBadRequest, "invalid plan selected")
		return
	}

	profile, err := h.profiles.GetByID(req.UserID)
	if err != nil {
		h.logger.Error("checkout: look up profile", "user_id", req.UserID, "error", err)
	}
	if profile == nil {
		// First checkout for an unknown user: create the record on the free
		// plan so billing identifiers have somewhere to live.
		profile, err = h.profiles.Create(req.UserID, "", checkoutEmail(req), model.PlanFree)
		if err != nil {
			h.logger.Error("checkout: create profile", "user_id", req.UserID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create user record")
			return
		}
	}

	customerID := ""
	if profile.StripeCustomerID != nil {
		customerID = *profile.StripeCustomerID
	}
	if customerID == "" {
		customerID, err = h.provider.CreateCustomer(profile.Email, profile.Name, req.UserID)
		if err != nil {
			h.logger.Error("checkout: create customer", "user_id", req.UserID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create checkout session")
			return
		}
		// Best-effort persistence; a concurrent checkout may overwrite this
		// (last write wins) and Stripe remains the source of truth.
		if err := h.profiles.UpdateStripeCustomerID(req.UserID, customerID); err != nil {
			h.logger.Error("checkout: persist customer id", "user_id", req.UserID, "error", err)
		}
	}

	url, err := h.provider.CreateCheckoutSession(customerID, req.Plan, req.UserID)
	if err != nil {
		h.logger.Error("checkout: create session", "user_id", req.UserID, "plan", req.Plan, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create checkout session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// checkoutEmail returns the request email or a synthesized placeholder so the
// billing customer always has an address.
func checkoutEmail(req checkoutRequest) string {
	if req.Email != "" {
		return req.Email
	}
	short := req.UserID
	if len(short) > 8 {
		short = short[:8]
	}
	return "user_" + short + "@checkout.temp"
}
