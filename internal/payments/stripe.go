package payments

import (
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	checksession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/mwhitfield/saasdash/internal/model"
)

type Config struct {
	SecretKey         string
	WebhookSecret     string
	ProPriceID        string
	EnterprisePriceID string
	// BaseURL is the dashboard origin used to build checkout redirect targets.
	BaseURL string
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{cfg: cfg}
}

// CreateCustomer creates a Stripe customer linked back to the user record and
// returns the customer ID.
func (c *Client) CreateCustomer(email, name, userID string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	if name != "" {
		params.Name = stripe.String(name)
	}
	params.AddMetadata("user_id", userID)

	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession opens a subscription checkout for the plan and returns
// the hosted page URL. The success redirect carries the plan so the billing
// page can confirm the upgrade; the cancel redirect carries a canceled marker.
func (c *Client) CreateCheckoutSession(customerID, plan, userID string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(c.PriceIDForPlan(plan)),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(c.SuccessURL(plan)),
		CancelURL:  stripe.String(c.CancelURL()),
	}
	params.AddMetadata("user_id", userID)
	params.AddMetadata("plan", plan)

	sess, err := checksession.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// SuccessURL is the redirect target after a completed checkout. The plan is
// carried in the query so the billing page can confirm the upgrade.
func (c *Client) SuccessURL(plan string) string {
	return fmt.Sprintf("%s/billing?success=true&plan=%s", c.cfg.BaseURL, plan)
}

// CancelURL is the redirect target when the user abandons checkout.
func (c *Client) CancelURL() string {
	return c.cfg.BaseURL + "/billing?canceled=true"
}

// PriceIDForPlan returns the Stripe price ID for the given plan.
func (c *Client) PriceIDForPlan(plan string) string {
	switch plan {
	case model.PlanEnterprise:
		return c.cfg.EnterprisePriceID
	default:
		return c.cfg.ProPriceID
	}
}

// ConstructWebhookEvent verifies the signature and returns the parsed event.
func (c *Client) ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, c.cfg.WebhookSecret)
}
