package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/mwhitfield/saasdash/internal/events"
	"github.com/mwhitfield/saasdash/internal/model"
	"github.com/mwhitfield/saasdash/internal/notify"
	"github.com/mwhitfield/saasdash/internal/payments"
	"github.com/mwhitfield/saasdash/internal/store"
)

const maxWebhookBody = 65536

// WebhookHandler applies Stripe billing events to profile records.
type WebhookHandler struct {
	stripeClient *payments.Client
	profiles     *store.ProfileStore
	notifier     *notify.Notifier
	hub          *events.Hub
	logger       *slog.Logger
}

func NewWebhookHandler(sc *payments.Client, profiles *store.ProfileStore, notifier *notify.Notifier, hub *events.Hub, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		stripeClient: sc,
		profiles:     profiles,
		notifier:     notifier,
		hub:          hub,
		logger:       logger,
	}
}

func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	event, err := h.stripeClient.ConstructWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(event)
	case "customer.subscription.updated":
		h.handleSubscriptionUpdated(event)
	case "customer.subscription.deleted":
		h.handleSubscriptionDeleted(event)
	case "invoice.payment_failed":
		h.handleInvoicePaymentFailed(event)
	}

	w.WriteHeader(http.StatusOK)
}

// handleCheckoutCompleted links the subscription to the profile named in the
// checkout metadata and moves it onto the purchased plan.
func (h *WebhookHandler) handleCheckoutCompleted(event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		h.logger.Error("webhook: unmarshal checkout session", "error", err)
		return
	}

	userID := sess.Metadata["user_id"]
	plan := sess.Metadata["plan"]
	if userID == "" {
		h.logger.Error("webhook: checkout session missing user_id metadata")
		return
	}
	if plan == "" {
		plan = model.PlanPro
	}

	var subscriptionID *string
	if sess.Subscription != nil {
		subscriptionID = &sess.Subscription.ID
	}

	if err := h.profiles.UpdateSubscription(userID, plan, "active", subscriptionID); err != nil {
		h.logger.Error("webhook: update subscription", "user_id", userID, "error", err)
		return
	}

	if sess.Customer != nil {
		if err := h.profiles.UpdateStripeCustomerID(userID, sess.Customer.ID); err != nil {
			h.logger.Error("webhook: persist customer id", "user_id", userID, "error", err)
		}
	}

	if h.hub != nil {
		h.hub.Broadcast(events.Message{Type: events.TypeCheckoutCompleted, UserID: userID, Plan: plan})
	}
	if h.notifier != nil {
		h.notifier.SubscriptionActivated(userID, plan)
	}

	h.logger.Info("webhook: checkout completed", "user_id", userID, "plan", plan)
}

func (h *WebhookHandler) handleSubscriptionUpdated(event stripe.Event) {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		h.logger.Error("webhook: unmarshal subscription", "error", err)
		return
	}

	profile := h.profileForCustomer(stripeSub.Customer)
	if profile == nil {
		return
	}

	if err := h.profiles.UpdateSubscriptionStatus(profile.ID, string(stripeSub.Status)); err != nil {
		h.logger.Error("webhook: update subscription status", "user_id", profile.ID, "error", err)
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(events.Message{Type: events.TypeSubscriptionUpdated, UserID: profile.ID, Plan: profile.Plan})
	}
}

// handleSubscriptionDeleted drops the profile back onto the free plan.
func (h *WebhookHandler) handleSubscriptionDeleted(event stripe.Event) {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		h.logger.Error("webhook: unmarshal subscription", "error", err)
		return
	}

	profile := h.profileForCustomer(stripeSub.Customer)
	if profile == nil {
		return
	}

	if err := h.profiles.UpdateSubscription(profile.ID, model.PlanFree, "canceled", nil); err != nil {
		h.logger.Error("webhook: cancel subscription", "user_id", profile.ID, "error", err)
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(events.Message{Type: events.TypeSubscriptionUpdated, UserID: profile.ID, Plan: model.PlanFree})
	}
}

func (h *WebhookHandler) handleInvoicePaymentFailed(event stripe.Event) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("webhook: unmarshal invoice", "error", err)
		return
	}

	profile := h.profileForCustomer(invoice.Customer)
	if profile == nil {
		return
	}

	if err := h.profiles.UpdateSubscriptionStatus(profile.ID, "past_due"); err != nil {
		h.logger.Error("webhook: mark past due", "user_id", profile.ID, "error", err)
		return
	}

	if h.notifier != nil {
		h.notifier.PaymentFailed(profile.ID, profile.Plan)
	}
}

func (h *WebhookHandler) profileForCustomer(customer *stripe.Customer) *model.Profile {
	if customer == nil {
		return nil
	}
	profile, err := h.profiles.GetByCustomerID(customer.ID)
	if err != nil {
		h.logger.Error("webhook: look up profile by customer", "customer_id", customer.ID, "error", err)
		return nil
	}
	if profile == nil {
		h.logger.Warn("webhook: no profile for customer", "customer_id", customer.ID)
	}
	return profile
}
