package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mwhitfield/saasdash/internal/model"
)

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(scanner interface{ Scan(...any) error }) (*model.Profile, error) {
	var p model.Profile
	var customerID, subID, subStatus sql.NullString
	var notifyEmail, notifyPush, notifyMarketing int
	err := scanner.Scan(
		&p.ID, &p.Name, &p.Email, &p.Plan, &p.Status,
		&customerID, &subID, &subStatus,
		&notifyEmail, &notifyPush, &notifyMarketing,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if customerID.Valid {
		p.StripeCustomerID = &customerID.String
	}
	if subID.Valid {
		p.SubscriptionID = &subID.String
	}
	if subStatus.Valid {
		p.SubscriptionStatus = &subStatus.String
	}
	p.Preferences = model.NotificationPreferences{
		Email:     notifyEmail != 0,
		Push:      notifyPush != 0,
		Marketing: notifyMarketing != 0,
	}
	return &p, nil
}

const profileCols = `id, name, email, plan, status, stripe_customer_id, subscription_id, subscription_status, notify_email, notify_push, notify_marketing, created_at, updated_at`

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Create inserts a new profile with the given plan and default preferences.
func (s *ProfileStore) Create(id, name, email, plan string) (*model.Profile, error) {
	now := time.Now().UTC()
	prefs := model.DefaultNotificationPreferences()
	_, err := s.db.Exec(
		`INSERT INTO profiles (id, name, email, plan, notify_email, notify_push, notify_marketing, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, name, email, plan,
		boolToInt(prefs.Email), boolToInt(prefs.Push), boolToInt(prefs.Marketing),
		now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProfileStore) GetByID(id string) (*model.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) GetByCustomerID(customerID string) (*model.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE stripe_customer_id = ?`, customerID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by customer id: %w", err)
	}
	return p, nil
}

// Upsert creates the profile or updates name, email, and notification
// preferences on an existing row. Plan, status, and billing identifiers are
// never touched by an upsert.
func (s *ProfileStore) Upsert(id, name, email string, prefs model.NotificationPreferences) (*model.Profile, error) {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO profiles (id, name, email, notify_email, notify_push, notify_marketing, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     name = excluded.name,
		     email = excluded.email,
		     notify_email = excluded.notify_email,
		     notify_push = excluded.notify_push,
		     notify_marketing = excluded.notify_marketing,
		     updated_at = excluded.updated_at`,
		id, name, email,
		boolToInt(prefs.Email), boolToInt(prefs.Push), boolToInt(prefs.Marketing),
		now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProfileStore) UpdateStripeCustomerID(id, customerID string) error {
	_, err := s.db.Exec(
		`UPDATE profiles SET stripe_customer_id = ?, updated_at = ? WHERE id = ?`,
		customerID, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update stripe customer id: %w", err)
	}
	return nil
}

// UpdateSubscription records the outcome of a billing event: the current plan,
// the subscription status, and optionally the subscription id.
func (s *ProfileStore) UpdateSubscription(id, plan, subscriptionStatus string, subscriptionID *string) error {
	now := time.Now().UTC()
	var err error
	if subscriptionID != nil {
		_, err = s.db.Exec(
			`UPDATE profiles SET plan = ?, subscription_status = ?, subscription_id = ?, updated_at = ? WHERE id = ?`,
			plan, subscriptionStatus, *subscriptionID, now, id,
		)
	} else {
		_, err = s.db.Exec(
			`UPDATE profiles SET plan = ?, subscription_status = ?, updated_at = ? WHERE id = ?`,
			plan, subscriptionStatus, now, id,
		)
	}
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

func (s *ProfileStore) UpdateSubscriptionStatus(id, subscriptionStatus string) error {
	_, err := s.db.Exec(
		`UPDATE profiles SET subscription_status = ?, updated_at = ? WHERE id = ?`,
		subscriptionStatus, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	return nil
}

func (s *ProfileStore) UpdateStatus(id, status string) error {
	_, err := s.db.Exec(
		`UPDATE profiles SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// List returns profiles newest first. A non-empty query filters by a
// case-insensitive substring match on name or email.
func (s *ProfileStore) List(query string) ([]*model.Profile, error) {
	var rows *sql.Rows
	var err error
	if query == "" {
		rows, err = s.db.Query(`SELECT ` + profileCols + ` FROM profiles ORDER BY created_at DESC`)
	} else {
		like := "%" + query + "%"
		rows, err = s.db.Query(
			`SELECT `+profileCols+` FROM profiles
			 WHERE name LIKE ? COLLATE NOCASE OR email LIKE ? COLLATE NOCASE
			 ORDER BY created_at DESC`,
			like, like,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// Stats aggregates profile counts for the dashboard overview.
func (s *ProfileStore) Stats() (*model.DashboardStats, error) {
	stats := &model.DashboardStats{
		ByPlan:   make(map[string]int64),
		ByStatus: make(map[string]int64),
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&stats.TotalUsers); err != nil {
		return nil, fmt.Errorf("count profiles: %w", err)
	}

	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM profiles WHERE subscription_status = ?`, "active",
	).Scan(&stats.ActiveSubscriptions)
	if err != nil {
		return nil, fmt.Errorf("count active subscriptions: %w", err)
	}

	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)
	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM profiles WHERE created_at >= ?`, cutoff,
	).Scan(&stats.RecentSignups)
	if err != nil {
		return nil, fmt.Errorf("count recent signups: %w", err)
	}

	rows, err := s.db.Query(`SELECT plan, COUNT(*) FROM profiles GROUP BY plan`)
	if err != nil {
		return nil, fmt.Errorf("count by plan: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var plan string
		var n int64
		if err := rows.Scan(&plan, &n); err != nil {
			return nil, fmt.Errorf("scan plan count: %w", err)
		}
		stats.ByPlan[plan] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	statusRows, err := s.db.Query(`SELECT status, COUNT(*) FROM profiles GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer statusRows.Close()
	for statusRows.Next() {
		var status string
		var n int64
		if err := statusRows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.ByStatus[status] = n
	}
	return stats, statusRows.Err()
}
