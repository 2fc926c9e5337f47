package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tahcohcat/ascended-progress/internal/achievements"
	"github.com/tahcohcat/ascended-progress/internal/logger"
	"github.com/tahcohcat/ascended-progress/internal/models"
	"github.com/tahcohcat/ascended-progress/internal/notify"
	"github.com/tahcohcat/ascended-progress/internal/progress"
)

// AwardFailure is one badge that could not be saved.
type AwardFailure struct {
	BadgeID string
	Err     error
}

// AwardError reports badges that were earned but failed to save. The badges
// that did save are still returned alongside it.
type AwardError struct {
	Failures []AwardFailure
}

func (e *AwardError) Error() string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.BadgeID
	}
	return fmt.Sprintf("failed to save %d badge(s): %s", len(e.Failures), strings.Join(ids, ", "))
}

func (e *AwardError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

type AchievementService struct {
	progress  ProgressStore
	store     AchievementStore
	catalog   BadgeCatalog
	evaluator *achievements.Evaluator
	publisher notify.Publisher
	clock     Clock
	log       *logger.Log
}

func NewAchievementService(progressStore ProgressStore, store AchievementStore, catalog BadgeCatalog, publisher notify.Publisher) *AchievementService {
	if publisher == nil {
		publisher = notify.Discard{}
	}
	return &AchievementService{
		progress:  progressStore,
		store:     store,
		catalog:   catalog,
		evaluator: achievements.NewEvaluator(),
		publisher: publisher,
		clock:     systemClock{},
		log:       logger.New().With("service", "AchievementService"),
	}
}

func (s *AchievementService) WithClock(c Clock) *AchievementService {
	s.clock = c
	return s
}

func (s *AchievementService) WithLogger(l *logger.Log) *AchievementService {
	s.log = l
	return s
}

// EvaluateAchievements awards every catalog badge the user has newly earned
// and returns the awarded records. A badge that fails to save does not stop
// the others; the failures come back as an *AwardError together with the
// records that were saved.
func (s *AchievementService) EvaluateAchievements(ctx context.Context, userID int) ([]models.AchievementRecord, error) {
	if userID <= 0 {
		return nil, models.InvalidInput("user_id", "must be positive, got %d", userID)
	}

	rooms, err := s.progress.ListRoomProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	earned, err := s.store.ListEarnedBadges(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load earned badges: %w", err)
	}
	catalog, err := s.catalog.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load badge catalog: %w", err)
	}

	state := achievements.State{
		UserID:  userID,
		Summary: progress.Summarize(rooms),
		Rooms:   rooms,
	}
	candidates := s.evaluator.Evaluate(state, catalog, earned, s.clock.Now())

	var (
		awarded  []models.AchievementRecord
		failures []AwardFailure
	)
	for _, rec := range candidates {
		inserted, err := s.store.SaveAchievement(ctx, rec)
		if err != nil {
			s.log.WithError(err).Warn("failed to save badge", "user_id", userID, "badge", rec.AchievementName)
			failures = append(failures, AwardFailure{BadgeID: rec.AchievementName, Err: err})
			continue
		}
		if !inserted {
			// a concurrent evaluation already awarded it
			continue
		}
		awarded = append(awarded, rec)
		s.announce(ctx, rec)
	}

	if len(failures) > 0 {
		return awarded, &AwardError{Failures: failures}
	}
	return awarded, nil
}

// announce records the activity and pushes the notification. Neither is
// allowed to fail the award.
func (s *AchievementService) announce(ctx context.Context, rec models.AchievementRecord) {
	name, _ := rec.Metadata["badge_name"].(string)
	if name == "" {
		name = rec.AchievementName
	}
	icon, _ := rec.Metadata["icon"].(string)
	details, _ := rec.Metadata["description"].(string)

	s.log.Info("badge earned", "user_id", rec.UserID, "badge", rec.AchievementName)

	if err := s.RecordActivity(ctx, rec.UserID, notify.TypeBadgeEarned, fmt.Sprintf("Earned \"%s\" badge", name), details, icon); err != nil {
		s.log.WithError(err).Warn("failed to record activity", "user_id", rec.UserID, "badge", rec.AchievementName)
	}
	if err := s.publisher.Publish(ctx, notify.BadgeEarned(rec)); err != nil {
		s.log.WithError(err).Warn("failed to publish badge notification", "user_id", rec.UserID, "badge", rec.AchievementName)
	}
}

// GetUserAchievements returns every achievement the user has earned.
func (s *AchievementService) GetUserAchievements(ctx context.Context, userID int) ([]models.AchievementRecord, error) {
	records, err := s.store.ListAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user achievements: %w", err)
	}
	return records, nil
}

// ListBadges returns the badge catalog.
func (s *AchievementService) ListBadges(ctx context.Context) ([]models.BadgeDefinition, error) {
	return s.catalog.ListAll(ctx)
}

// RecordActivity adds a new activity entry for the user
func (s *AchievementService) RecordActivity(ctx context.Context, userID int, activityType, title, details, icon string) error {
	return s.store.RecordActivity(ctx, &models.GameActivity{
		UserID:    userID,
		Type:      activityType,
		Title:     title,
		Details:   details,
		Icon:      icon,
		CreatedAt: s.clock.Now(),
	})
}

// GetRecentActivities returns recent user activities
func (s *AchievementService) GetRecentActivities(ctx context.Context, userID int, limit int) ([]models.GameActivity, error) {
	return s.store.ListActivities(ctx, userID, limit)
}

// BadgeSeeder writes badge definitions that are not stored yet.
type BadgeSeeder interface {
	SeedBadges(ctx context.Context, badges []models.BadgeDefinition) error
}

// SeedDefaultBadges stores the built-in catalog, or the one read from
// catalogFile, without touching badges that already exist.
func SeedDefaultBadges(ctx context.Context, seeder BadgeSeeder, catalogFile string) error {
	badges, err := achievements.LoadCatalog(catalogFile)
	if err != nil {
		return err
	}
	if err := seeder.SeedBadges(ctx, badges); err != nil {
		return fmt.Errorf("failed to seed badges: %w", err)
	}
	return nil
}

// IsAwardError reports whether err carries partial badge save failures.
func IsAwardError(err error) bool {
	var ae *AwardError
	return errors.As(err, &ae)
}
