package services

import (
	"context"
	"time"

	"github.com/tahcohcat/ascended-progress/internal/models"
)

// ProgressStore persists room progress. Put must be atomic per user and room.
type ProgressStore interface {
	// GetRoomProgress returns nil, nil when the room has no record.
	GetRoomProgress(ctx context.Context, userID, room int) (*models.RoomProgress, error)
	ListRoomProgress(ctx context.Context, userID int) ([]models.RoomProgress, error)
	// PutRoomProgress writes with compare-and-swap on Version and returns
	// models.ErrConflictingWriteLost when another write got there first.
	PutRoomProgress(ctx context.Context, p *models.RoomProgress) error
}

// AchievementStore persists earned achievements and the activity feed.
type AchievementStore interface {
	ListEarnedBadges(ctx context.Context, userID int) (map[models.BadgeKey]bool, error)
	ListAchievements(ctx context.Context, userID int) ([]models.AchievementRecord, error)
	// SaveAchievement is idempotent on the record key and reports whether it
	// wrote a new row.
	SaveAchievement(ctx context.Context, rec models.AchievementRecord) (bool, error)
	RecordActivity(ctx context.Context, a *models.GameActivity) error
	ListActivities(ctx context.Context, userID, limit int) ([]models.GameActivity, error)
}

type BadgeCatalog interface {
	ListAll(ctx context.Context) ([]models.BadgeDefinition, error)
}

type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
