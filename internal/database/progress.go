package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tahcohcat/ascended-progress/internal/models"
)

type progressRow struct {
	UserID               int             `db:"user_id"`
	RoomNumber           int             `db:"room_number"`
	CompletionStatus     string          `db:"completion_status"`
	CompletionPercentage int             `db:"completion_percentage"`
	TimeSpent            int             `db:"time_spent"`
	Score                int             `db:"score"`
	BestScore            int             `db:"best_score"`
	Attempts             int             `db:"attempts"`
	RoomData             models.RoomData `db:"room_data"`
	TotalPuzzles         int             `db:"total_puzzles"`
	TotalChallenges      int             `db:"total_challenges"`
	TotalObjectives      int             `db:"total_objectives"`
	TotalSecrets         int             `db:"total_secrets"`
	LastAccessed         *time.Time      `db:"last_accessed"`
	CompletedAt          *time.Time      `db:"completed_at"`
	Version              int             `db:"version"`
}

const progressColumns = `user_id, room_number, completion_status, completion_percentage,
	time_spent, score, best_score, attempts, room_data,
	total_puzzles, total_challenges, total_objectives, total_secrets,
	last_accessed, completed_at, version`

func toProgressRow(p *models.RoomProgress) progressRow {
	row := progressRow{
		UserID:               p.UserID,
		RoomNumber:           p.RoomNumber,
		CompletionStatus:     string(p.Status()),
		CompletionPercentage: p.CompletionPercentage,
		TimeSpent:            p.TimeSpentSeconds,
		Score:                p.Score,
		BestScore:            p.BestScore,
		Attempts:             p.Attempts,
		RoomData:             p.RoomData,
		TotalPuzzles:         p.Totals.Puzzles,
		TotalChallenges:      p.Totals.Challenges,
		TotalObjectives:      p.Totals.Objectives,
		TotalSecrets:         p.Totals.Secrets,
		Version:              p.Version,
	}
	if !p.LastAccessed.IsZero() {
		t := p.LastAccessed.UTC()
		row.LastAccessed = &t
	}
	if p.CompletedAt != nil {
		t := p.CompletedAt.UTC()
		row.CompletedAt = &t
	}
	return row
}

func (r progressRow) model() models.RoomProgress {
	p := models.RoomProgress{
		UserID:               r.UserID,
		RoomNumber:           r.RoomNumber,
		CompletionStatus:     models.CompletionStatus(r.CompletionStatus),
		CompletionPercentage: r.CompletionPercentage,
		TimeSpentSeconds:     r.TimeSpent,
		Score:                r.Score,
		BestScore:            r.BestScore,
		Attempts:             r.Attempts,
		RoomData:             r.RoomData.Clone(),
		Totals: models.RoomTotals{
			Puzzles:    r.TotalPuzzles,
			Challenges: r.TotalChallenges,
			Objectives: r.TotalObjectives,
			Secrets:    r.TotalSecrets,
		},
		Version: r.Version,
	}
	if r.LastAccessed != nil {
		p.LastAccessed = models.At(r.LastAccessed.UTC())
	}
	if r.CompletedAt != nil {
		t := r.CompletedAt.UTC()
		p.CompletedAt = &t
	}
	return p
}

// GetRoomProgress returns the stored record, or nil when there is none.
func (db *DB) GetRoomProgress(ctx context.Context, userID, room int) (*models.RoomProgress, error) {
	var row progressRow
	query := db.Rebind(`SELECT ` + progressColumns + ` FROM room_progress WHERE user_id = ? AND room_number = ?`)
	err := db.GetContext(ctx, &row, query, userID, room)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, models.Storage("get room progress", err)
	}
	p := row.model()
	return &p, nil
}

// ListRoomProgress returns every stored room of the user ordered by room.
func (db *DB) ListRoomProgress(ctx context.Context, userID int) ([]models.RoomProgress, error) {
	var rows []progressRow
	query := db.Rebind(`SELECT ` + progressColumns + ` FROM room_progress WHERE user_id = ? ORDER BY room_number`)
	if err := db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, models.Storage("list room progress", err)
	}

	out := make([]models.RoomProgress, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

// PutRoomProgress writes p with compare-and-swap on Version. Version 0
// inserts a new row; anything else updates the row only if the stored
// version still matches. On success p.Version holds the new version.
func (db *DB) PutRoomProgress(ctx context.Context, p *models.RoomProgress) error {
	row := toProgressRow(p)

	var (
		res sql.Result
		err error
	)
	if p.Version == 0 {
		row.Version = 1
		res, err = db.NamedExecContext(ctx, `
			INSERT INTO room_progress (`+progressColumns+`)
			VALUES (:user_id, :room_number, :completion_status, :completion_percentage,
				:time_spent, :score, :best_score, :attempts, :room_data,
				:total_puzzles, :total_challenges, :total_objectives, :total_secrets,
				:last_accessed, :completed_at, :version)
			ON CONFLICT (user_id, room_number) DO NOTHING`, row)
	} else {
		res, err = db.NamedExecContext(ctx, `
			UPDATE room_progress SET
				completion_status = :completion_status,
				completion_percentage = :completion_percentage,
				time_spent = :time_spent,
				score = :score,
				best_score = :best_score,
				attempts = :attempts,
				room_data = :room_data,
				total_puzzles = :total_puzzles,
				total_challenges = :total_challenges,
				total_objectives = :total_objectives,
				total_secrets = :total_secrets,
				last_accessed = :last_accessed,
				completed_at = :completed_at,
				version = version + 1
			WHERE user_id = :user_id AND room_number = :room_number AND version = :version`, row)
		row.Version++
	}
	if err != nil {
		return models.Storage("put room progress", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return models.Storage("put room progress", err)
	}
	if n == 0 {
		return models.ErrConflictingWriteLost
	}
	p.Version = row.Version
	return nil
}
