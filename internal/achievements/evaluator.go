// Package achievements decides which catalog badges a player has newly
// earned, and keeps the badge catalog loaded.
package achievements

import (
	"sort"
	"time"

	"github.com/tahcohcat/ascended-progress/internal/models"
)

// State is the player state badges are evaluated against.
type State struct {
	UserID  int
	Summary models.ProgressSummary
	Rooms   []models.RoomProgress
}

// rule reports whether def is satisfied, and the room it was satisfied in
// (0 for account-wide rules).
type rule func(def models.BadgeDefinition, st State) (room int, ok bool)

// Evaluator maps requirement types to rules. It is side-effect free.
type Evaluator struct {
	rules map[models.RequirementType]rule
}

// NewEvaluator creates an evaluator with every requirement type registered.
func NewEvaluator() *Evaluator {
	return &Evaluator{rules: map[models.RequirementType]rule{
		models.RequirementLevelCompletion: roomRule(anyItemCompleted),
		models.RequirementAnyCompletion:   roomRule(anyItemCompleted),
		models.RequirementRoomCompletion:  roomRule(func(_ models.BadgeDefinition, r models.RoomProgress) bool { return r.Completed() }),
		models.RequirementTimeBased: roomRule(func(def models.BadgeDefinition, r models.RoomProgress) bool {
			return r.Completed() && r.TimeSpentSeconds < def.RequirementValue
		}),
		models.RequirementScoreBased: roomRule(func(def models.BadgeDefinition, r models.RoomProgress) bool {
			return r.BestScore >= def.RequirementValue
		}),
		models.RequirementNoHints: roomRule(func(_ models.BadgeDefinition, r models.RoomProgress) bool {
			return r.Completed() && r.RoomData.HintsUsed == 0
		}),
		models.RequirementPerfectCode: perfectCode,

		models.RequirementTotalLevels: summaryRule(func(def models.BadgeDefinition, s models.ProgressSummary) bool {
			return s.CompletedRooms >= atLeastOne(def.RequirementValue)
		}),
		models.RequirementRoomDiversity: summaryRule(func(def models.BadgeDefinition, s models.ProgressSummary) bool {
			return s.RoomsVisited >= atLeastOne(def.RequirementValue)
		}),
		models.RequirementSpeed: summaryRule(func(def models.BadgeDefinition, s models.ProgressSummary) bool {
			return s.FastestCompletion > 0 && s.FastestCompletion <= def.RequirementValue
		}),
		models.RequirementNoHintsTotal: summaryRule(func(def models.BadgeDefinition, s models.ProgressSummary) bool {
			return s.NoHintCompletions >= atLeastOne(def.RequirementValue)
		}),
		models.RequirementAllRooms: summaryRule(func(def models.BadgeDefinition, s models.ProgressSummary) bool {
			need := def.RequirementValue
			if need <= 0 {
				need = models.NumRooms
			}
			return s.CompletedRooms >= need
		}),
		models.RequirementEfficiency: summaryRule(func(def models.BadgeDefinition, s models.ProgressSummary) bool {
			return s.CompletedRooms > 0 && s.EfficiencyRating >= float64(def.RequirementValue)
		}),
	}}
}

// Supports reports whether t has a registered rule.
func (e *Evaluator) Supports(t models.RequirementType) bool {
	_, ok := e.rules[t]
	return ok
}

// Evaluate walks the catalog in order and returns a record for every badge
// that is satisfied and not already in earned. Badges with unknown
// requirement types are skipped. Calling it again with the returned records
// added to earned yields nothing.
func (e *Evaluator) Evaluate(st State, catalog []models.BadgeDefinition, earned map[models.BadgeKey]bool, now time.Time) []models.AchievementRecord {
	rooms := make([]models.RoomProgress, len(st.Rooms))
	copy(rooms, st.Rooms)
	sort.SliceStable(rooms, func(i, j int) bool { return rooms[i].RoomNumber < rooms[j].RoomNumber })
	st.Rooms = rooms

	seen := make(map[models.BadgeKey]bool)
	var out []models.AchievementRecord
	for _, def := range catalog {
		key := def.Key()
		if earned[key] || seen[key] {
			continue
		}
		check, ok := e.rules[def.RequirementType]
		if !ok {
			continue
		}
		room, ok := check(def, st)
		if !ok {
			continue
		}
		seen[key] = true
		out = append(out, newRecord(st.UserID, def, room, now))
	}
	return out
}

func newRecord(userID int, def models.BadgeDefinition, room int, now time.Time) models.AchievementRecord {
	rec := models.AchievementRecord{
		UserID:          userID,
		AchievementType: models.AchievementTypeBadge,
		AchievementName: def.ID,
		Metadata: models.Metadata{
			"badge_name":        def.Name,
			"description":       def.Description,
			"icon":              def.Icon,
			"requirement_type":  string(def.RequirementType),
			"requirement_value": def.RequirementValue,
		},
		EarnedAt: now,
	}
	if room > 0 {
		r := room
		rec.RoomNumber = &r
		rec.Metadata["room_name"] = models.RoomName(room)
	}
	return rec
}

// roomRule builds a rule satisfied by the first matching room. A badge with
// RoomID 0 may be satisfied by any room.
func roomRule(pred func(def models.BadgeDefinition, r models.RoomProgress) bool) rule {
	return func(def models.BadgeDefinition, st State) (int, bool) {
		for _, r := range st.Rooms {
			if def.RoomID != 0 && r.RoomNumber != def.RoomID {
				continue
			}
			if pred(def, r) {
				return r.RoomNumber, true
			}
		}
		return 0, false
	}
}

func summaryRule(pred func(def models.BadgeDefinition, s models.ProgressSummary) bool) rule {
	return func(def models.BadgeDefinition, st State) (int, bool) {
		return 0, pred(def, st.Summary)
	}
}

func anyItemCompleted(_ models.BadgeDefinition, r models.RoomProgress) bool {
	return r.RoomData.PuzzlesCompleted.Len() > 0 || r.RoomData.ObjectivesCompleted.Len() > 0
}

func isPerfect(r models.RoomProgress) bool {
	return r.Completed() &&
		r.CompletionPercentage >= 100 &&
		r.RoomData.Deaths == 0 &&
		r.RoomData.HintsUsed == 0
}

// perfectCode is room scoped when the badge names a room, otherwise it
// counts perfect rooms across the account.
func perfectCode(def models.BadgeDefinition, st State) (int, bool) {
	if def.RoomID != 0 {
		return roomRule(func(_ models.BadgeDefinition, r models.RoomProgress) bool { return isPerfect(r) })(def, st)
	}
	return 0, st.Summary.PerfectRooms >= atLeastOne(def.RequirementValue)
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
