package notifications

import (
	"context"
	"encoding/json"

	"github.com/imimarket/imimarket-backend/pkg/db/models"
	pkgerrors "github.com/imimarket/imimarket-backend/pkg/errors"
	"github.com/imimarket/imimarket-backend/pkg/redis"
)

// Sink delivers a persisted notification to an external channel (pub/sub,
// push, websocket fan-out). Delivery is best-effort: the stored row is the
// source of truth, a failed delivery must never fail the business operation.
type Sink interface {
	Deliver(ctx context.Context, notification *models.Notification) error
}

// publisher is the slice of the redis client the sink needs.
type publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
	NotificationChannel(userID string) string
}

type redisSink struct {
	client publisher
}

// NewRedisSink returns a Sink publishing notifications as JSON to the user's
// pub/sub channel (or the broadcast channel for system notices).
func NewRedisSink(client *redis.Client) (Sink, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "redis client required")
	}
	return &redisSink{client: client}, nil
}

func (s *redisSink) Deliver(ctx context.Context, notification *models.Notification) error {
	if notification == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification required")
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode notification")
	}
	var userID string
	if notification.UserID != nil {
		userID = notification.UserID.String()
	}
	channel := s.client.NotificationChannel(userID)
	if err := s.client.Publish(ctx, channel, payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish notification")
	}
	return nil
}

// NopSink drops deliveries. Used when no streaming backend is configured.
type NopSink struct{}

func (NopSink) Deliver(context.Context, *models.Notification) error { return nil }
