package model

import "time"

// Subscription plans. Free is the default tier and cannot be purchased.
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// Profile statuses.
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
)

// PurchasablePlan reports whether plan can be bought through checkout.
func PurchasablePlan(plan string) bool {
	return plan == PlanPro || plan == PlanEnterprise
}

// NotificationPreferences holds the three per-user notification switches.
type NotificationPreferences struct {
	Email     bool `json:"email"`
	Push      bool `json:"push"`
	Marketing bool `json:"marketing"`
}

// DefaultNotificationPreferences are applied when a profile is first created.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{Email: true, Push: false, Marketing: true}
}

// Profile is the durable per-user record backing the dashboard.
type Profile struct {
	ID                 string                  `json:"id"`
	Name               string                  `json:"name"`
	Email              string                  `json:"email"`
	Plan               string                  `json:"plan"`
	Status             string                  `json:"status"`
	StripeCustomerID   *string                 `json:"stripe_customer_id"`
	SubscriptionID     *string                 `json:"subscription_id"`
	SubscriptionStatus *string                 `json:"subscription_status"`
	Preferences        NotificationPreferences `json:"notification_preferences"`
	CreatedAt          time.Time               `json:"created_at"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

// Account is an identity-provider record holding credentials.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session is an authenticated session. Email and Name are denormalized from
// the owning account so holders never need a second lookup.
type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// PushSubscription is a browser push endpoint registered by a user.
type PushSubscription struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dhKey string    `json:"p256dh_key"`
	AuthKey   string    `json:"auth_key"`
	CreatedAt time.Time `json:"created_at"`
}

// Backup statuses.
const (
	BackupStatusPending   = "pending"
	BackupStatusUploading = "uploading"
	BackupStatusCompleted = "completed"
	BackupStatusFailed    = "failed"
)

// Backup records one snapshot upload attempt.
type Backup struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	S3Key     string    `json:"s3_key"`
	Status    string    `json:"status"`
	SizeBytes int64     `json:"size_bytes"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}

// DashboardStats aggregates the numbers shown on the overview and analytics pages.
type DashboardStats struct {
	TotalUsers          int64            `json:"total_users"`
	ActiveSubscriptions int64            `json:"active_subscriptions"`
	RecentSignups       int64            `json:"recent_signups"`
	ByPlan              map[string]int64 `json:"by_plan"`
	ByStatus            map[string]int64 `json:"by_status"`
}
