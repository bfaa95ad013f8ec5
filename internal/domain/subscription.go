package domain

import "time"

// PushSubscription registers one endpoint (a device or a webhook bridge) that
// receives reminder notifications for a user.
type PushSubscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateSubscriptionRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	Label    string `json:"label" validate:"max=100"`
}
