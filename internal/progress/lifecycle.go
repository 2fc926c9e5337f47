package progress

import (
	"time"

	"github.com/tahcohcat/ascended-progress/internal/models"
)

// DefaultCompletionThreshold is the percentage at which a room counts as completed.
const DefaultCompletionThreshold = 95

// Validate rejects malformed client records before anything is written.
func Validate(p models.RoomProgress) error {
	if !models.ValidRoom(p.RoomNumber) {
		return models.InvalidInput("room_number", "must be within 1..%d, got %d", models.NumRooms, p.RoomNumber)
	}
	if !p.CompletionStatus.Valid() {
		return models.InvalidInput("completion_status", "unknown status %q", p.CompletionStatus)
	}
	counters := []struct {
		field string
		value int
	}{
		{"time_spent", p.TimeSpentSeconds},
		{"score", p.Score},
		{"best_score", p.BestScore},
		{"attempts", p.Attempts},
		{"room_data.deaths", p.RoomData.Deaths},
		{"room_data.hints_used", p.RoomData.HintsUsed},
		{"room_data.current_checkpoint", p.RoomData.CurrentCheckpoint},
		{"totals.total_puzzles", p.Totals.Puzzles},
		{"totals.total_challenges", p.Totals.Challenges},
		{"totals.total_objectives", p.Totals.Objectives},
		{"totals.total_secrets", p.Totals.Secrets},
	}
	for _, c := range counters {
		if c.value < 0 {
			return models.InvalidInput(c.field, "must not be negative, got %d", c.value)
		}
	}
	if e := p.RoomData.ExplorationPercentage; e < 0 || e > 100 {
		return models.InvalidInput("room_data.exploration_percentage", "must be within 0..100, got %v", e)
	}
	return nil
}

// Rescore derives the completion percentage from the room data.
func Rescore(p *models.RoomProgress) {
	p.CompletionPercentage = Score(p.RoomData, p.Totals)
}

// KeepStored re-applies the storage invariants of the stored record to next:
// identifier sets never shrink and monotonic counters never regress.
func KeepStored(stored *models.RoomProgress, next *models.RoomProgress) {
	if stored == nil {
		return
	}
	next.RoomData = MergeRoomData(stored.RoomData, next.RoomData)
	next.Totals = mergeTotals(stored.Totals, next.Totals)
	next.TimeSpentSeconds = max(next.TimeSpentSeconds, stored.TimeSpentSeconds)
	next.BestScore = max(next.BestScore, stored.BestScore)
	next.Attempts = max(next.Attempts, stored.Attempts)
	if stored.Completed() {
		next.CompletionStatus = models.StatusCompleted
		if next.CompletedAt == nil && stored.CompletedAt != nil {
			t := *stored.CompletedAt
			next.CompletedAt = &t
		}
	}
}

// Transition applies the completion threshold and the bookkeeping for a
// move into completed: attempts go up by one and CompletedAt is stamped.
// It reports whether next newly became completed relative to prev.
func Transition(prev *models.RoomProgress, next *models.RoomProgress, threshold int, now time.Time) bool {
	if threshold > 0 && next.CompletionPercentage >= threshold {
		next.CompletionStatus = models.StatusCompleted
	}
	if next.Status() == models.StatusNotStarted && next.Started() {
		next.CompletionStatus = models.StatusInProgress
	}
	if !next.Completed() || (prev != nil && prev.Completed()) {
		return false
	}

	prevAttempts := 0
	if prev != nil {
		prevAttempts = prev.Attempts
	}
	next.Attempts = max(next.Attempts, prevAttempts+1)
	if next.CompletedAt == nil {
		t := now
		next.CompletedAt = &t
	}
	return true
}
