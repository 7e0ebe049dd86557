package domain

import "time"

// Card is a stored payment card. Only the last four digits of the PAN are
// kept; expiry is the string MM/YYYY. SubscriptionID correlates the card to
// the account updater service.
type Card struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	CardType       string    `json:"card_type"`
	LastFour       string    `json:"last_four"`
	ExpiryDate     string    `json:"expiry_date"`
	CardholderName string    `json:"cardholder_name"`
	Status         string    `json:"status,omitempty"`
	IsDefault      bool      `json:"is_default"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
