package database

import (
	"context"
	"time"

	"github.com/tahcohcat/ascended-progress/internal/models"
)

// ListEarnedBadges returns the keys of every achievement the user holds.
func (db *DB) ListEarnedBadges(ctx context.Context, userID int) (map[models.BadgeKey]bool, error) {
	var rows []struct {
		Type string `db:"achievement_type"`
		Name string `db:"achievement_name"`
	}
	query := db.Rebind(`SELECT achievement_type, achievement_name FROM user_achievements WHERE user_id = ?`)
	if err := db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, models.Storage("list earned badges", err)
	}

	earned := make(map[models.BadgeKey]bool, len(rows))
	for _, r := range rows {
		earned[models.BadgeKey{Type: r.Type, Name: r.Name}] = true
	}
	return earned, nil
}

// ListAchievements returns the user's achievements, oldest first.
func (db *DB) ListAchievements(ctx context.Context, userID int) ([]models.AchievementRecord, error) {
	query := db.Rebind(`
		SELECT user_id, achievement_type, achievement_name, room_number, metadata, earned_at
		FROM user_achievements
		WHERE user_id = ?
		ORDER BY earned_at, achievement_name`)

	var records []models.AchievementRecord
	if err := db.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, models.Storage("list achievements", err)
	}
	for i := range records {
		records[i].EarnedAt = records[i].EarnedAt.UTC()
	}
	return records, nil
}

// SaveAchievement inserts rec unless the user already holds it. It reports
// whether a row was written.
func (db *DB) SaveAchievement(ctx context.Context, rec models.AchievementRecord) (bool, error) {
	rec.EarnedAt = rec.EarnedAt.UTC()
	res, err := db.NamedExecContext(ctx, `
		INSERT INTO user_achievements (user_id, achievement_type, achievement_name, room_number, metadata, earned_at)
		VALUES (:user_id, :achievement_type, :achievement_name, :room_number, :metadata, :earned_at)
		ON CONFLICT (user_id, achievement_type, achievement_name) DO NOTHING`, rec)
	if err != nil {
		return false, models.Storage("save achievement", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, models.Storage("save achievement", err)
	}
	return n > 0, nil
}

// RecordActivity adds a new activity entry for the user
func (db *DB) RecordActivity(ctx context.Context, a *models.GameActivity) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.CreatedAt = a.CreatedAt.UTC()

	query := db.Rebind(`
		INSERT INTO game_activities (user_id, type, title, details, icon, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := db.ExecContext(ctx, query, a.UserID, a.Type, a.Title, a.Details, a.Icon, a.CreatedAt)
	return models.Storage("record activity", err)
}

// ListActivities returns recent user activities, newest first
func (db *DB) ListActivities(ctx context.Context, userID, limit int) ([]models.GameActivity, error) {
	if limit <= 0 {
		limit = 10
	}

	query := db.Rebind(`
		SELECT id, user_id, type, title, details, icon, created_at
		FROM game_activities
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`)

	var activities []models.GameActivity
	if err := db.SelectContext(ctx, &activities, query, userID, limit); err != nil {
		return nil, models.Storage("list activities", err)
	}
	return activities, nil
}

type badgeRow struct {
	models.BadgeDefinition
	SortOrder int `db:"sort_order"`
}

// ListBadges returns the badge catalog in its seeded order.
func (db *DB) ListBadges(ctx context.Context) ([]models.BadgeDefinition, error) {
	var rows []badgeRow
	err := db.SelectContext(ctx, &rows, `
		SELECT id, name, description, icon, room_id, requirement_type, requirement_value, sort_order, created_at
		FROM badges
		ORDER BY sort_order, id`)
	if err != nil {
		return nil, models.Storage("list badges", err)
	}

	out := make([]models.BadgeDefinition, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.BadgeDefinition)
	}
	return out, nil
}

// SeedBadges inserts the given badges, leaving existing rows untouched.
func (db *DB) SeedBadges(ctx context.Context, badges []models.BadgeDefinition) error {
	now := time.Now().UTC()
	for i, b := range badges {
		query := db.Rebind(`
			INSERT INTO badges (id, name, description, icon, room_id, requirement_type, requirement_value, sort_order, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO NOTHING`)
		_, err := db.ExecContext(ctx, query, b.ID, b.Name, b.Description, b.Icon,
			b.RoomID, string(b.RequirementType), b.RequirementValue, i, now)
		if err != nil {
			return models.Storage("seed badge "+b.ID, err)
		}
	}
	return nil
}
