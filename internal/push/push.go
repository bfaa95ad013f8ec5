// Package push delivers reminder notifications to the endpoints a user has
// subscribed. Delivery is best effort per endpoint; the caller decides what a
// failed result means.
package push

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"arbor-server/internal/repository"
)

// Payload is the notification body: enough for a client to show the reminder
// and navigate to the firing node.
type Payload struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	NodeID string `json:"nodeId"`
}

// Result reports the outcome of delivery to a single endpoint.
type Result struct {
	SubscriptionID string
	Endpoint       string
	Err            error
}

type Sender interface {
	Deliver(userID string, payload *Payload) []Result
}

// WebhookSender POSTs the payload as JSON to every endpoint subscribed for the
// user.
type WebhookSender struct {
	subscriptions repository.SubscriptionRepository
	client        *http.Client
}

func NewWebhookSender(subscriptions repository.SubscriptionRepository, timeout time.Duration) *WebhookSender {
	return &WebhookSender{
		subscriptions: subscriptions,
		client:        &http.Client{Timeout: timeout},
	}
}

func (s *WebhookSender) Deliver(userID string, payload *Payload) []Result {
	subs, err := s.subscriptions.List(userID)
	if err != nil {
		return []Result{{Err: fmt.Errorf("failed to list subscriptions: %w", err)}}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return []Result{{Err: fmt.Errorf("failed to encode payload: %w", err)}}
	}

	results := make([]Result, 0, len(subs))
	for _, sub := range subs {
		results = append(results, Result{
			SubscriptionID: sub.ID,
			Endpoint:       sub.Endpoint,
			Err:            s.post(sub.Endpoint, data),
		})
	}

	return results
}

func (s *WebhookSender) post(endpoint string, data []byte) error {
	resp, err := s.client.Post(endpoint, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	return nil
}
