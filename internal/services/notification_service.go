package services

import (
	"context"
	"fmt"

	"auction-site/internal/domain"
	"auction-site/internal/metrics"
	"auction-site/pkg/logger"
	"auction-site/pkg/utils"
)

// NotificationService stores notifications and pushes them to the user's
// live connections. The push is fire-and-forget.
type NotificationService struct {
	repo     domain.NotificationRepository
	notifier domain.UserNotifier
	clock    domain.Clock
	metrics  *metrics.Metrics
	log      logger.Logger
}

func NewNotificationService(
	repo domain.NotificationRepository,
	notifier domain.UserNotifier,
	clock domain.Clock,
	m *metrics.Metrics,
	log logger.Logger,
) *NotificationService {
	return &NotificationService{
		repo:     repo,
		notifier: notifier,
		clock:    clock,
		metrics:  m,
		log:      log,
	}
}

func (s *NotificationService) Send(ctx context.Context, userID string, category domain.NotificationCategory, title, message string) error {
	n := &domain.Notification{
		ID:        utils.GenerateID("notification"),
		UserID:    userID,
		Category:  category,
		Title:     title,
		Message:   message,
		CreatedAt: s.clock.Now(),
	}

	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("store notification for %s: %w", userID, err)
	}
	s.metrics.NotificationsSentTotal.WithLabelValues(string(category)).Inc()

	pushCtx := context.WithoutCancel(ctx)
	go func() {
		payload := map[string]interface{}{
			"type":         "notification",
			"notification": n,
		}
		if err := s.notifier.NotifyUser(pushCtx, userID, payload); err != nil {
			s.log.Debug("Live notification not delivered", "user_id", userID, "error", err)
		}
	}()

	return nil
}

// ListForUser returns the user's unread notifications, newest first, and
// marks them read in one batch.
func (s *NotificationService) ListForUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	notifications, err := s.repo.ListUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(notifications) == 0 {
		return []*domain.Notification{}, nil
	}

	ids := make([]string, 0, len(notifications))
	for _, n := range notifications {
		ids = append(ids, n.ID)
	}

	if err := s.repo.MarkRead(ctx, ids, s.clock.Now()); err != nil {
		return nil, fmt.Errorf("mark notifications read: %w", err)
	}
	return notifications, nil
}
