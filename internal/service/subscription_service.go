package service

import (
	"errors"
	"time"

	"arbor-server/internal/domain"
	"arbor-server/internal/repository"

	"github.com/google/uuid"
)

type SubscriptionService struct {
	repo repository.SubscriptionRepository
}

func NewSubscriptionService(repo repository.SubscriptionRepository) *SubscriptionService {
	return &SubscriptionService{
		repo: repo,
	}
}

func (s *SubscriptionService) Create(userID string, req *domain.CreateSubscriptionRequest) (*domain.PushSubscription, error) {
	sub := &domain.PushSubscription{
		ID:        uuid.New().String(),
		UserID:    userID,
		Endpoint:  req.Endpoint,
		Label:     req.Label,
		CreatedAt: time.Now(),
	}

	if err := s.repo.Create(sub); err != nil {
		return nil, err
	}

	return sub, nil
}

func (s *SubscriptionService) List(userID string) ([]*domain.PushSubscription, error) {
	return s.repo.List(userID)
}

func (s *SubscriptionService) Delete(userID, subID string) error {
	sub, err := s.repo.FindByID(subID)
	if err != nil {
		return err
	}

	if sub.UserID != userID {
		return errors.New("unauthorized: subscription does not belong to user")
	}

	return s.repo.Delete(subID)
}
