package repository

import (
	"context"
	"fmt"

	"arbor-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type SubscriptionRepository interface {
	Create(sub *domain.PushSubscription) error
	List(userID string) ([]*domain.PushSubscription, error)
	FindByID(subID string) (*domain.PushSubscription, error)
	Delete(subID string) error
}

type subscriptionRepository struct {
	client *kivik.Client
	dbName string
}

func NewSubscriptionRepository(client *kivik.Client, dbName string) SubscriptionRepository {
	return &subscriptionRepository{
		client: client,
		dbName: dbName,
	}
}

func subscriptionDocID(subID string) string {
	return fmt.Sprintf("subscription:%s", subID)
}

func (r *subscriptionRepository) Create(sub *domain.PushSubscription) error {
	db := r.client.DB(r.dbName)

	_, err := db.Put(context.Background(), subscriptionDocID(sub.ID), sub)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	return nil
}

func (r *subscriptionRepository) List(userID string) ([]*domain.PushSubscription, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"user_id":  userID,
			"endpoint": map[string]interface{}{"$exists": true},
		},
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*domain.PushSubscription
	for rows.Next() {
		var sub domain.PushSubscription
		if err := rows.ScanDoc(&sub); err != nil {
			continue // Skip malformed docs
		}
		subs = append(subs, &sub)
	}

	return subs, nil
}

func (r *subscriptionRepository) FindByID(subID string) (*domain.PushSubscription, error) {
	db := r.client.DB(r.dbName)

	row := db.Get(context.Background(), subscriptionDocID(subID))

	var sub domain.PushSubscription
	if err := row.ScanDoc(&sub); err != nil {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}

	return &sub, nil
}

func (r *subscriptionRepository) Delete(subID string) error {
	db := r.client.DB(r.dbName)
	docID := subscriptionDocID(subID)

	var rawDoc map[string]interface{}
	row := db.Get(context.Background(), docID)
	if err := row.ScanDoc(&rawDoc); err != nil {
		return err
	}

	rev, _ := rawDoc["_rev"].(string)
	if _, err := db.Delete(context.Background(), docID, rev); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}

	return nil
}
