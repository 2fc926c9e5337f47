// Package progress holds the pure progress rules: completion scoring,
// conflict resolution between two copies of a room record, event
// application and account-wide aggregation.
package progress

import (
	"math"

	"github.com/tahcohcat/ascended-progress/internal/models"
)

// Category weights, in percent. Secrets are a bonus on top of the other four.
const (
	WeightExploration = 25.0
	WeightPuzzles     = 35.0
	WeightChallenges  = 20.0
	WeightObjectives  = 15.0
	WeightSecrets     = 5.0
)

// Score converts room telemetry into a completion percentage in [0, 100].
//
// A category total that is unknown (zero or negative) is treated as 1, so a
// room that really has no puzzles scores as if it had one unsolved puzzle.
func Score(data models.RoomData, totals models.RoomTotals) int {
	sum := clampPct(data.ExplorationPercentage)*WeightExploration/100 +
		categoryPct(data.PuzzlesCompleted.Len(), totals.Puzzles)*WeightPuzzles/100 +
		categoryPct(data.ChallengesSolved.Len(), totals.Challenges)*WeightChallenges/100 +
		categoryPct(data.ObjectivesCompleted.Len(), totals.Objectives)*WeightObjectives/100 +
		categoryPct(data.SecretsFound.Len(), totals.Secrets)*WeightSecrets/100

	return int(math.Round(math.Max(0, math.Min(100, sum))))
}

func categoryPct(done, total int) float64 {
	if total <= 0 {
		total = 1
	}
	return math.Min(100, float64(done)/float64(total)*100)
}

func clampPct(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
