package progress

import (
	"strings"

	"github.com/tahcohcat/ascended-progress/internal/models"
)

// EventType names one gameplay telemetry event.
type EventType string

const (
	EventRoomEntered        EventType = "room_entered"
	EventPuzzleSolved       EventType = "puzzle_solved"
	EventChallengeCompleted EventType = "challenge_completed"
	EventSecretFound        EventType = "secret_found"
	EventObjectiveCompleted EventType = "objective_completed"
	EventItemCollected      EventType = "item_collected"
	EventExplorationUpdate  EventType = "exploration_update"
	EventHintUsed           EventType = "hint_used"
	EventDeath              EventType = "death"
	EventCheckpointReached  EventType = "checkpoint_reached"
	EventScoreUpdate        EventType = "score_update"
	EventTimeSpent          EventType = "time_spent"
	EventPositionUpdate     EventType = "position_update"
	EventStateUpdate        EventType = "state_update"
	EventRoomCompleted      EventType = "room_completed"
)

// Event is one telemetry event reported by a client.
type Event struct {
	Type EventType `json:"event_type"`
	// ID identifies the puzzle, challenge, secret, objective or item.
	ID string `json:"id,omitempty"`
	// Amount carries the score, checkpoint or seconds. Counter events
	// default to 1.
	Amount int `json:"amount,omitempty"`
	// Percentage carries the exploration percentage.
	Percentage float64 `json:"percentage,omitempty"`
	// Data carries the position or game state blob.
	Data models.RawJSON `json:"data,omitempty"`
}

// Validate checks the event payload before any mutation.
func (e Event) Validate() error {
	switch e.Type {
	case EventPuzzleSolved, EventChallengeCompleted, EventSecretFound,
		EventObjectiveCompleted, EventItemCollected:
		if strings.TrimSpace(e.ID) == "" {
			return models.InvalidInput("id", "required for %s", e.Type)
		}
	case EventExplorationUpdate:
		if e.Percentage < 0 || e.Percentage > 100 {
			return models.InvalidInput("percentage", "must be within 0..100, got %v", e.Percentage)
		}
	case EventHintUsed, EventDeath, EventCheckpointReached, EventScoreUpdate, EventTimeSpent:
		if e.Amount < 0 {
			return models.InvalidInput("amount", "must not be negative, got %d", e.Amount)
		}
	case EventPositionUpdate, EventStateUpdate:
		if len(e.Data) == 0 {
			return models.InvalidInput("data", "required for %s", e.Type)
		}
	case EventRoomEntered, EventRoomCompleted:
	default:
		return models.InvalidInput("event_type", "unknown event %q", e.Type)
	}
	return nil
}

// ApplyEvent mutates p with one validated event. It does not rescore; the
// caller recomputes the completion percentage afterwards.
func ApplyEvent(p *models.RoomProgress, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	d := &p.RoomData
	d.EnsureSets()

	switch e.Type {
	case EventPuzzleSolved:
		d.PuzzlesCompleted.Add(e.ID)
	case EventChallengeCompleted:
		d.ChallengesSolved.Add(e.ID)
	case EventSecretFound:
		d.SecretsFound.Add(e.ID)
	case EventObjectiveCompleted:
		d.ObjectivesCompleted.Add(e.ID)
	case EventItemCollected:
		d.ItemsCollected.Add(e.ID)
	case EventExplorationUpdate:
		d.ExplorationPercentage = max(d.ExplorationPercentage, e.Percentage)
	case EventHintUsed:
		d.HintsUsed += countOf(e.Amount)
	case EventDeath:
		d.Deaths += countOf(e.Amount)
	case EventCheckpointReached:
		d.CurrentCheckpoint = max(d.CurrentCheckpoint, e.Amount)
	case EventScoreUpdate:
		p.Score = e.Amount
		p.BestScore = max(p.BestScore, e.Amount)
	case EventTimeSpent:
		p.TimeSpentSeconds += e.Amount
	case EventPositionUpdate:
		d.LastPosition = e.Data.Clone()
	case EventStateUpdate:
		d.GameState = e.Data.Clone()
	case EventRoomEntered, EventRoomCompleted:
		// status handled by the caller
	}

	if p.Status() == models.StatusNotStarted {
		p.CompletionStatus = models.StatusInProgress
	}
	return nil
}

func countOf(amount int) int {
	if amount == 0 {
		return 1
	}
	return amount
}
