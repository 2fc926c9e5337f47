package models

import (
	"bytes"
	"time"
)

// NumRooms is the number of rooms in the game. Room numbers run 1..NumRooms.
const NumRooms = 5

var roomNames = map[int]string{
	1: "Flowchart Lab",
	2: "Network Nexus",
	3: "AI Systems",
	4: "Database Crisis",
	5: "Programming Crisis",
}

// RoomName returns the display name for a room number.
func RoomName(room int) string {
	if name, ok := roomNames[room]; ok {
		return name
	}
	return "General"
}

// ValidRoom reports whether room is inside 1..NumRooms.
func ValidRoom(room int) bool {
	return room >= 1 && room <= NumRooms
}

type CompletionStatus string

const (
	StatusNotStarted CompletionStatus = "not_started"
	StatusInProgress CompletionStatus = "in_progress"
	StatusCompleted  CompletionStatus = "completed"
)

// Valid reports whether s is one of the known statuses. The empty status is
// treated as not_started by callers and is accepted here.
func (s CompletionStatus) Valid() bool {
	switch s {
	case "", StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// RoomTotals holds the per-room category totals used as denominators by
// the completion score. They come from the room definition on the client.
type RoomTotals struct {
	Puzzles    int `json:"total_puzzles"`
	Challenges int `json:"total_challenges"`
	Objectives int `json:"total_objectives"`
	Secrets    int `json:"total_secrets"`
}

// RoomProgress is the per user and room progress record.
type RoomProgress struct {
	UserID               int              `json:"user_id"`
	RoomNumber           int              `json:"room_number"`
	CompletionStatus     CompletionStatus `json:"completion_status"`
	CompletionPercentage int              `json:"completion_percentage"`
	TimeSpentSeconds     int              `json:"time_spent"`
	Score                int              `json:"score"`
	BestScore            int              `json:"best_score"`
	Attempts             int              `json:"attempts"`
	RoomData             RoomData         `json:"room_data"`
	Totals               RoomTotals       `json:"totals"`
	LastAccessed         Timestamp        `json:"last_accessed"`
	CompletedAt          *time.Time       `json:"completed_at,omitempty"`

	// Version is owned by the store and used for compare-and-swap writes.
	Version int `json:"version"`
}

// NewRoomProgress returns an empty not_started record for the user and room.
func NewRoomProgress(userID, room int) RoomProgress {
	return RoomProgress{
		UserID:           userID,
		RoomNumber:       room,
		CompletionStatus: StatusNotStarted,
		RoomData:         NewRoomData(),
	}
}

// Status returns the completion status, mapping the empty value to not_started.
func (p RoomProgress) Status() CompletionStatus {
	if p.CompletionStatus == "" {
		return StatusNotStarted
	}
	return p.CompletionStatus
}

// Completed reports whether the room is completed.
func (p RoomProgress) Completed() bool {
	return p.CompletionStatus == StatusCompleted
}

// Started reports whether the record shows any progress at all.
func (p RoomProgress) Started() bool {
	return p.Status() != StatusNotStarted ||
		p.CompletionPercentage > 0 ||
		p.TimeSpentSeconds > 0 ||
		!p.RoomData.Empty()
}

// Clone returns a deep copy of p.
func (p RoomProgress) Clone() RoomProgress {
	out := p
	out.RoomData = p.RoomData.Clone()
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// Equal reports whether a and b hold the same progress. Version is ignored.
func (p RoomProgress) Equal(o RoomProgress) bool {
	if p.UserID != o.UserID ||
		p.RoomNumber != o.RoomNumber ||
		p.Status() != o.Status() ||
		p.CompletionPercentage != o.CompletionPercentage ||
		p.TimeSpentSeconds != o.TimeSpentSeconds ||
		p.Score != o.Score ||
		p.BestScore != o.BestScore ||
		p.Attempts != o.Attempts ||
		p.Totals != o.Totals ||
		!p.LastAccessed.Equal(o.LastAccessed.Time) {
		return false
	}
	if (p.CompletedAt == nil) != (o.CompletedAt == nil) {
		return false
	}
	if p.CompletedAt != nil && !p.CompletedAt.Equal(*o.CompletedAt) {
		return false
	}
	return p.RoomData.Equal(o.RoomData)
}

// RoomData is the structured bag of per-room telemetry. The identifier sets
// only ever grow; scalar counters are merged by max.
type RoomData struct {
	PuzzlesCompleted    IDSet `json:"puzzles_completed"`
	ChallengesSolved    IDSet `json:"challenges_solved"`
	SecretsFound        IDSet `json:"secrets_found"`
	ItemsCollected      IDSet `json:"items_collected"`
	ObjectivesCompleted IDSet `json:"objectives_completed"`

	Deaths                int     `json:"deaths"`
	HintsUsed             int     `json:"hints_used"`
	CurrentCheckpoint     int     `json:"current_checkpoint"`
	ExplorationPercentage float64 `json:"exploration_percentage"`

	// Opaque client blobs, passed through unchanged.
	LastPosition RawJSON `json:"last_position,omitempty"`
	GameState    RawJSON `json:"game_state,omitempty"`
}

// NewRoomData returns RoomData with all sets allocated.
func NewRoomData() RoomData {
	return RoomData{
		PuzzlesCompleted:    IDSet{},
		ChallengesSolved:    IDSet{},
		SecretsFound:        IDSet{},
		ItemsCollected:      IDSet{},
		ObjectivesCompleted: IDSet{},
	}
}

// Empty reports whether no telemetry has been recorded.
func (d RoomData) Empty() bool {
	return d.PuzzlesCompleted.Len() == 0 &&
		d.ChallengesSolved.Len() == 0 &&
		d.SecretsFound.Len() == 0 &&
		d.ItemsCollected.Len() == 0 &&
		d.ObjectivesCompleted.Len() == 0 &&
		d.Deaths == 0 &&
		d.HintsUsed == 0 &&
		d.CurrentCheckpoint == 0 &&
		d.ExplorationPercentage == 0 &&
		len(d.LastPosition) == 0 &&
		len(d.GameState) == 0
}

// Clone returns a deep copy of d with every set allocated.
func (d RoomData) Clone() RoomData {
	out := d
	out.PuzzlesCompleted = d.PuzzlesCompleted.Clone()
	out.ChallengesSolved = d.ChallengesSolved.Clone()
	out.SecretsFound = d.SecretsFound.Clone()
	out.ItemsCollected = d.ItemsCollected.Clone()
	out.ObjectivesCompleted = d.ObjectivesCompleted.Clone()
	out.LastPosition = d.LastPosition.Clone()
	out.GameState = d.GameState.Clone()
	return out
}

// EnsureSets allocates every nil identifier set in place.
func (d *RoomData) EnsureSets() {
	for _, s := range []*IDSet{
		&d.PuzzlesCompleted,
		&d.ChallengesSolved,
		&d.SecretsFound,
		&d.ItemsCollected,
		&d.ObjectivesCompleted,
	} {
		if *s == nil {
			*s = NewIDSet()
		}
	}
}

// Equal compares two RoomData values. Nil and empty sets are equal.
func (d RoomData) Equal(o RoomData) bool {
	return d.PuzzlesCompleted.Equal(o.PuzzlesCompleted) &&
		d.ChallengesSolved.Equal(o.ChallengesSolved) &&
		d.SecretsFound.Equal(o.SecretsFound) &&
		d.ItemsCollected.Equal(o.ItemsCollected) &&
		d.ObjectivesCompleted.Equal(o.ObjectivesCompleted) &&
		d.Deaths == o.Deaths &&
		d.HintsUsed == o.HintsUsed &&
		d.CurrentCheckpoint == o.CurrentCheckpoint &&
		d.ExplorationPercentage == o.ExplorationPercentage &&
		bytes.Equal(d.LastPosition, o.LastPosition) &&
		bytes.Equal(d.GameState, o.GameState)
}

// ProgressSummary is the account-wide view derived from a set of rooms.
// The zero value means no progress yet.
type ProgressSummary struct {
	TotalRooms        int     `json:"total_rooms"`
	RoomsVisited      int     `json:"rooms_visited"`
	CompletedRooms    int     `json:"completed_rooms"`
	InProgressRooms   int     `json:"in_progress_rooms"`
	CompletionRate    float64 `json:"completion_rate"`
	AverageCompletion float64 `json:"average_completion"`
	TotalTimeSpent    int     `json:"total_time_spent"`
	TotalScore        int     `json:"total_score"`
	TotalAttempts     int     `json:"total_attempts"`

	PuzzlesCompleted    int `json:"puzzles_completed"`
	ChallengesSolved    int `json:"challenges_solved"`
	SecretsFound        int `json:"secrets_found"`
	ItemsCollected      int `json:"items_collected"`
	ObjectivesCompleted int `json:"objectives_completed"`
	Deaths              int `json:"deaths"`
	HintsUsed           int `json:"hints_used"`

	// NoHintCompletions counts completed rooms finished without hints.
	NoHintCompletions int `json:"no_hint_completions"`
	// PerfectRooms counts completed rooms at 100% with no deaths and no hints.
	PerfectRooms int `json:"perfect_rooms"`
	// FastestCompletion is the lowest time spent on a completed room, 0 if none.
	FastestCompletion int `json:"fastest_completion"`

	EfficiencyRating float64 `json:"efficiency_rating"`
}

// ConflictDetail describes how one room was reconciled during a sync.
type ConflictDetail struct {
	RoomNumber         int    `json:"room_number"`
	Reason             string `json:"reason"`
	LocalCompletion    int    `json:"local_completion"`
	ServerCompletion   int    `json:"server_completion"`
	ResolvedCompletion int    `json:"resolved_completion"`
}
