// Package notify fans badge notifications out to connected clients and
// other server instances.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tahcohcat/ascended-progress/internal/models"
)

const TypeBadgeEarned = "badge_earned"

// Notification is pushed to a user when something worth showing happens.
type Notification struct {
	ID          string                    `json:"id"`
	Type        string                    `json:"type"`
	UserID      int                       `json:"user_id"`
	Achievement *models.AchievementRecord `json:"achievement,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`
}

// BadgeEarned builds the notification for a newly awarded badge.
func BadgeEarned(rec models.AchievementRecord) Notification {
	r := rec
	return Notification{
		ID:          uuid.NewString(),
		Type:        TypeBadgeEarned,
		UserID:      rec.UserID,
		Achievement: &r,
		CreatedAt:   rec.EarnedAt,
	}
}

type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, n Notification) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Publish(context.Context, Notification) error { return nil }
