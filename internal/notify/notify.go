package notify

import (
	"errors"
	"log/slog"

	"github.com/mwhitfield/saasdash/internal/email"
	"github.com/mwhitfield/saasdash/internal/store"
)

// Notifier delivers billing notifications to users over the channels their
// notification preferences allow: email (email pref) and web push (push pref).
// Delivery is best-effort; failures are logged and never propagated to the
// billing flow that triggered them.
type Notifier struct {
	profiles *store.ProfileStore
	pushSubs *store.PushStore
	push     *PushService
	email    *email.Client
	logger   *slog.Logger
}

func NewNotifier(profiles *store.ProfileStore, pushSubs *store.PushStore, push *PushService, ec *email.Client, logger *slog.Logger) *Notifier {
	return &Notifier{
		profiles: profiles,
		pushSubs: pushSubs,
		push:     push,
		email:    ec,
		logger:   logger,
	}
}

// SubscriptionActivated tells the user their paid plan is live.
func (n *Notifier) SubscriptionActivated(userID, plan string) {
	n.dispatch(userID, "Subscription active", "Your "+plan+" subscription is now active.", func(addr string) error {
		return n.email.SendSubscriptionActive(addr, plan)
	})
}

// PaymentFailed warns the user a renewal charge did not go through.
func (n *Notifier) PaymentFailed(userID, plan string) {
	n.dispatch(userID, "Payment failed", "A payment for your "+plan+" subscription failed.", func(addr string) error {
		return n.email.SendPaymentFailed(addr, plan)
	})
}

func (n *Notifier) dispatch(userID, title, body string, sendEmail func(addr string) error) {
	profile, err := n.profiles.GetByID(userID)
	if err != nil {
		n.logger.Error("notify: load profile", "user_id", userID, "error", err)
		return
	}
	if profile == nil {
		return
	}

	if profile.Preferences.Email && n.email != nil && n.email.Configured() {
		if err := sendEmail(profile.Email); err != nil {
			n.logger.Error("notify: send email", "user_id", userID, "error", err)
		}
	}

	if profile.Preferences.Push && n.push != nil && n.push.Configured() {
		n.sendPush(userID, title, body)
	}
}

func (n *Notifier) sendPush(userID, title, body string) {
	subs, err := n.pushSubs.ListByUserID(userID)
	if err != nil {
		n.logger.Error("notify: list push subscriptions", "user_id", userID, "error", err)
		return
	}

	for _, sub := range subs {
		err := n.push.Send(sub, PushPayload{Title: title, Body: body, URL: "/billing", Tag: "billing"})
		if errors.Is(err, ErrExpired) {
			if derr := n.pushSubs.DeleteByEndpoint(sub.Endpoint); derr != nil {
				n.logger.Error("notify: delete expired push subscription", "error", derr)
			}
			continue
		}
		if err != nil {
			n.logger.Error("notify: send push", "user_id", userID, "error", err)
		}
	}
}
