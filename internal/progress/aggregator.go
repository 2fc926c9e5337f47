package progress

import (
	"math"

	"github.com/tahcohcat/ascended-progress/internal/models"
)

const (
	deathPenalty = 5
	hintPenalty  = 2
)

// Summarize reduces a user's room records into account-wide statistics.
// An empty input yields the zero summary.
func Summarize(rooms []models.RoomProgress) models.ProgressSummary {
	var s models.ProgressSummary
	if len(rooms) == 0 {
		return s
	}

	var pctSum, effSum float64
	for _, r := range rooms {
		s.TotalRooms++
		if r.Started() {
			s.RoomsVisited++
		}
		switch r.Status() {
		case models.StatusCompleted:
			s.CompletedRooms++
			if r.RoomData.HintsUsed == 0 {
				s.NoHintCompletions++
				if r.RoomData.Deaths == 0 && r.CompletionPercentage >= 100 {
					s.PerfectRooms++
				}
			}
			if r.TimeSpentSeconds > 0 && (s.FastestCompletion == 0 || r.TimeSpentSeconds < s.FastestCompletion) {
				s.FastestCompletion = r.TimeSpentSeconds
			}
		case models.StatusInProgress:
			s.InProgressRooms++
		}

		pctSum += float64(r.CompletionPercentage)
		effSum += Efficiency(r)

		s.TotalTimeSpent += r.TimeSpentSeconds
		s.TotalScore += r.BestScore
		s.TotalAttempts += r.Attempts
		s.PuzzlesCompleted += r.RoomData.PuzzlesCompleted.Len()
		s.ChallengesSolved += r.RoomData.ChallengesSolved.Len()
		s.SecretsFound += r.RoomData.SecretsFound.Len()
		s.ItemsCollected += r.RoomData.ItemsCollected.Len()
		s.ObjectivesCompleted += r.RoomData.ObjectivesCompleted.Len()
		s.Deaths += r.RoomData.Deaths
		s.HintsUsed += r.RoomData.HintsUsed
	}

	n := float64(len(rooms))
	s.CompletionRate = round1(float64(s.CompletedRooms) / models.NumRooms * 100)
	s.AverageCompletion = round1(pctSum / n)
	s.EfficiencyRating = round1(math.Min(100, effSum/n))
	return s
}

// Efficiency rates a single room: completion plus a speed bonus, minus
// penalties for deaths and hints, floored at zero.
func Efficiency(r models.RoomProgress) float64 {
	speedBonus := math.Max(0, 100-float64(r.TimeSpentSeconds)/60)
	eff := float64(r.CompletionPercentage) + speedBonus -
		float64(r.RoomData.Deaths*deathPenalty) -
		float64(r.RoomData.HintsUsed*hintPenalty)
	return math.Max(0, eff)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
