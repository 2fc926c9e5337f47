package models

import (
	"time"
)

// RequirementType selects the rule a badge is evaluated with.
type RequirementType string

const (
	RequirementLevelCompletion RequirementType = "level_completion"
	RequirementRoomCompletion  RequirementType = "room_completion"
	RequirementTimeBased       RequirementType = "time_based"
	RequirementScoreBased      RequirementType = "score_based"
	RequirementNoHints         RequirementType = "no_hints"
	RequirementAnyCompletion   RequirementType = "any_completion"
	RequirementTotalLevels     RequirementType = "total_levels"
	RequirementRoomDiversity   RequirementType = "room_diversity"
	RequirementSpeed           RequirementType = "speed"
	RequirementNoHintsTotal    RequirementType = "no_hints_total"
	RequirementAllRooms        RequirementType = "all_rooms"
	RequirementEfficiency      RequirementType = "efficiency"
	RequirementPerfectCode     RequirementType = "perfect_code"
)

var requirementTypes = map[RequirementType]bool{
	RequirementLevelCompletion: true,
	RequirementRoomCompletion:  true,
	RequirementTimeBased:       true,
	RequirementScoreBased:      true,
	RequirementNoHints:         true,
	RequirementAnyCompletion:   true,
	RequirementTotalLevels:     true,
	RequirementRoomDiversity:   true,
	RequirementSpeed:           true,
	RequirementNoHintsTotal:    true,
	RequirementAllRooms:        true,
	RequirementEfficiency:      true,
	RequirementPerfectCode:     true,
}

func (t RequirementType) Valid() bool {
	return requirementTypes[t]
}

// AchievementTypeBadge is the achievement type recorded for catalog badges.
const AchievementTypeBadge = "badge"

// BadgeDefinition is one entry of the badge catalog. RoomID 0 means global.
type BadgeDefinition struct {
	ID               string          `json:"id" db:"id" yaml:"id"`
	Name             string          `json:"name" db:"name" yaml:"name"`
	Description      string          `json:"description" db:"description" yaml:"description"`
	Icon             string          `json:"icon" db:"icon" yaml:"icon"`
	RoomID           int             `json:"room_id" db:"room_id" yaml:"room_id"`
	RequirementType  RequirementType `json:"requirement_type" db:"requirement_type" yaml:"requirement_type"`
	RequirementValue int             `json:"requirement_value" db:"requirement_value" yaml:"requirement_value"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at" yaml:"-"`
}

// Key is the uniqueness key an award of this badge is stored under.
func (b BadgeDefinition) Key() BadgeKey {
	return BadgeKey{Type: AchievementTypeBadge, Name: b.ID}
}

// BadgeKey identifies an earned achievement for one user.
type BadgeKey struct {
	Type string
	Name string
}

// AchievementRecord is an awarded achievement. (UserID, AchievementType,
// AchievementName) is unique.
type AchievementRecord struct {
	UserID          int       `json:"user_id" db:"user_id"`
	AchievementType string    `json:"achievement_type" db:"achievement_type"`
	AchievementName string    `json:"achievement_name" db:"achievement_name"`
	RoomNumber      *int      `json:"room_number,omitempty" db:"room_number"`
	Metadata        Metadata  `json:"metadata" db:"metadata"`
	EarnedAt        time.Time `json:"earned_at" db:"earned_at"`
}

func (a AchievementRecord) Key() BadgeKey {
	return BadgeKey{Type: a.AchievementType, Name: a.AchievementName}
}

type GameActivity struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Type      string    `json:"type" db:"type"` // badge_earned, room_completed
	Title     string    `json:"title" db:"title"`
	Details   string    `json:"details" db:"details"`
	Icon      string    `json:"icon" db:"icon"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
