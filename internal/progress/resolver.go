package progress

import (
	"time"

	"github.com/tahcohcat/ascended-progress/internal/models"
)

// Resolution reasons.
const (
	ReasonIdentical              = "identical"
	ReasonServerOnly             = "server_only"
	ReasonLocalOnly              = "local_only"
	ReasonLocalHigherCompletion  = "local_higher_completion"
	ReasonServerHigherCompletion = "server_higher_completion"
	ReasonLocalNewerTimestamp    = "local_newer_timestamp"
	ReasonServerNewerTimestamp   = "server_newer_timestamp"
	ReasonMergedBestValues       = "merged_best_values"
)

// Resolution is the outcome of reconciling a local and a server record.
type Resolution struct {
	Record models.RoomProgress
	// Detected is true when both sides were present and disagreed.
	Detected bool
	// Changed is true when Record differs from the server copy and needs a write.
	Changed bool
	Reason  string
}

// Resolve reconciles two copies of the same user and room record. Either side
// may be nil. now stamps LastAccessed on every genuine resolution.
//
// Precedence: higher completion wins, then the later timestamp, then a
// field-wise merge. Time spent, score, best score and attempts are always the
// max of both sides, and the completion percentage is the max of the inputs.
func Resolve(local, server *models.RoomProgress, now time.Time) Resolution {
	switch {
	case local == nil && server == nil:
		return Resolution{}
	case local == nil:
		return Resolution{Record: server.Clone(), Reason: ReasonServerOnly}
	case server == nil:
		return Resolution{Record: local.Clone(), Changed: true, Reason: ReasonLocalOnly}
	}

	if local.Equal(*server) {
		return Resolution{Record: server.Clone(), Reason: ReasonIdentical}
	}

	var (
		out    models.RoomProgress
		reason string
	)
	switch {
	case local.CompletionPercentage > server.CompletionPercentage:
		out, reason = local.Clone(), ReasonLocalHigherCompletion
	case server.CompletionPercentage > local.CompletionPercentage:
		out, reason = server.Clone(), ReasonServerHigherCompletion
	case usableTimestamps(local, server) && local.LastAccessed.After(server.LastAccessed.Time):
		out, reason = local.Clone(), ReasonLocalNewerTimestamp
	case usableTimestamps(local, server) && server.LastAccessed.After(local.LastAccessed.Time):
		out, reason = server.Clone(), ReasonServerNewerTimestamp
	default:
		out, reason = merge(local, server), ReasonMergedBestValues
	}

	out.TimeSpentSeconds = max(local.TimeSpentSeconds, server.TimeSpentSeconds)
	out.Score = max(local.Score, server.Score)
	out.BestScore = max(local.BestScore, server.BestScore)
	out.Attempts = max(local.Attempts, server.Attempts)
	out.CompletionPercentage = max(local.CompletionPercentage, server.CompletionPercentage)
	out.LastAccessed = models.At(now)
	out.Version = server.Version

	return Resolution{
		Record:   out,
		Detected: true,
		Changed:  !out.Equal(*server),
		Reason:   reason,
	}
}

// usableTimestamps reports whether both records carry a parsed timestamp.
func usableTimestamps(a, b *models.RoomProgress) bool {
	return !a.LastAccessed.IsZero() && !b.LastAccessed.IsZero()
}

// merge combines two equally complete records without a usable timestamp.
// The server is authoritative for status and opaque blobs.
func merge(local, server *models.RoomProgress) models.RoomProgress {
	out := server.Clone()
	if server.CompletionStatus == "" {
		out.CompletionStatus = local.CompletionStatus
	}
	out.RoomData = MergeRoomData(local.RoomData, server.RoomData)
	out.Totals = mergeTotals(local.Totals, server.Totals)
	if out.CompletedAt == nil && local.CompletedAt != nil {
		t := *local.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// MergeRoomData unions every identifier set and takes the max of the scalar
// counters. Opaque blobs come from b unless b has none.
func MergeRoomData(a, b models.RoomData) models.RoomData {
	out := b.Clone()
	out.PuzzlesCompleted = b.PuzzlesCompleted.Union(a.PuzzlesCompleted)
	out.ChallengesSolved = b.ChallengesSolved.Union(a.ChallengesSolved)
	out.SecretsFound = b.SecretsFound.Union(a.SecretsFound)
	out.ItemsCollected = b.ItemsCollected.Union(a.ItemsCollected)
	out.ObjectivesCompleted = b.ObjectivesCompleted.Union(a.ObjectivesCompleted)
	out.Deaths = max(a.Deaths, b.Deaths)
	out.HintsUsed = max(a.HintsUsed, b.HintsUsed)
	out.CurrentCheckpoint = max(a.CurrentCheckpoint, b.CurrentCheckpoint)
	out.ExplorationPercentage = max(a.ExplorationPercentage, b.ExplorationPercentage)
	if len(out.LastPosition) == 0 {
		out.LastPosition = a.LastPosition.Clone()
	}
	if len(out.GameState) == 0 {
		out.GameState = a.GameState.Clone()
	}
	return out
}

func mergeTotals(a, b models.RoomTotals) models.RoomTotals {
	return models.RoomTotals{
		Puzzles:    max(a.Puzzles, b.Puzzles),
		Challenges: max(a.Challenges, b.Challenges),
		Objectives: max(a.Objectives, b.Objectives),
		Secrets:    max(a.Secrets, b.Secrets),
	}
}
