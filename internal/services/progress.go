package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tahcohcat/ascended-progress/internal/logger"
	"github.com/tahcohcat/ascended-progress/internal/models"
	"github.com/tahcohcat/ascended-progress/internal/progress"
)

// RoomFailure is a room that could not be persisted during a sync.
type RoomFailure struct {
	Room int `json:"room_number"`
	// Retryable is set when a concurrent write won; syncing again will
	// reconcile against it.
	Retryable bool   `json:"retryable"`
	Message   string `json:"error"`
	Err       error  `json:"-"`
}

// SyncResult is the outcome of reconciling a client's local progress.
type SyncResult struct {
	SyncID            string                      `json:"sync_id"`
	Merged            map[int]models.RoomProgress `json:"merged_progress"`
	ConflictsResolved int                         `json:"conflicts_resolved"`
	Conflicts         []models.ConflictDetail     `json:"conflict_details"`
	FailedRooms       []RoomFailure               `json:"failed_rooms,omitempty"`
	NewAchievements   []models.AchievementRecord  `json:"new_achievements"`
}

// Err joins the per-room failures, or returns nil.
func (r *SyncResult) Err() error {
	errs := make([]error, 0, len(r.FailedRooms))
	for _, f := range r.FailedRooms {
		errs = append(errs, fmt.Errorf("room %d: %w", f.Room, f.Err))
	}
	return errors.Join(errs...)
}

type ProgressService struct {
	store        ProgressStore
	achievements *AchievementService
	threshold    int
	workers      int
	clock        Clock
	log          *logger.Log
}

// NewProgressService creates the sync coordinator. achievements may be nil,
// in which case nothing is evaluated after writes.
func NewProgressService(store ProgressStore, achievements *AchievementService, threshold, workers int) *ProgressService {
	if threshold <= 0 {
		threshold = progress.DefaultCompletionThreshold
	}
	if workers < 1 {
		workers = 1
	}
	return &ProgressService{
		store:        store,
		achievements: achievements,
		threshold:    threshold,
		workers:      workers,
		clock:        systemClock{},
		log:          logger.New().With("service", "ProgressService"),
	}
}

func (s *ProgressService) WithClock(c Clock) *ProgressService {
	s.clock = c
	return s
}

func (s *ProgressService) WithLogger(l *logger.Log) *ProgressService {
	s.log = l
	return s
}

// SyncProgress reconciles the client's local records with the stored ones.
// Every room present on either side is resolved independently; a room that
// fails to persist is reported in FailedRooms and does not stop the others.
// Input is validated up front and nothing is written if any record is bad.
func (s *ProgressService) SyncProgress(ctx context.Context, userID int, local map[int]models.RoomProgress) (*SyncResult, error) {
	if userID <= 0 {
		return nil, models.InvalidInput("user_id", "must be positive, got %d", userID)
	}

	incoming := make(map[int]*models.RoomProgress, len(local))
	for room, rec := range local {
		if rec.RoomNumber == 0 {
			rec.RoomNumber = room
		}
		if rec.RoomNumber != room {
			return nil, models.InvalidInput("room_number", "record for room %d is keyed as %d", rec.RoomNumber, room)
		}
		if err := progress.Validate(rec); err != nil {
			return nil, err
		}
		p := rec.Clone()
		p.UserID = userID
		p.Version = 0
		// completion is derived, never taken from the client
		progress.Rescore(&p)
		incoming[room] = &p
	}

	stored, err := s.store.ListRoomProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	server := make(map[int]*models.RoomProgress, len(stored))
	for i := range stored {
		server[stored[i].RoomNumber] = &stored[i]
	}

	rooms := roomKeys(incoming, server)
	result := &SyncResult{
		SyncID:          uuid.NewString(),
		Merged:          make(map[int]models.RoomProgress, len(rooms)),
		Conflicts:       []models.ConflictDetail{},
		NewAchievements: []models.AchievementRecord{},
	}
	log := s.log.With("user_id", userID, "sync_id", result.SyncID)
	now := s.clock.Now()

	var (
		mu    sync.Mutex
		wrote bool
		g     errgroup.Group
	)
	g.SetLimit(s.workers)
	for _, room := range rooms {
		room := room
		g.Go(func() error {
			out := s.syncRoom(ctx, incoming[room], server[room], now)

			mu.Lock()
			defer mu.Unlock()
			if out.err != nil {
				f := RoomFailure{
					Room:      room,
					Retryable: errors.Is(out.err, models.ErrConflictingWriteLost),
					Message:   out.err.Error(),
					Err:       out.err,
				}
				result.FailedRooms = append(result.FailedRooms, f)
				log.WithError(out.err).Warn("room sync failed", "room", room, "retryable", f.Retryable)
				return nil
			}
			result.Merged[room] = out.record
			wrote = wrote || out.wrote
			if out.conflict != nil {
				result.ConflictsResolved++
				result.Conflicts = append(result.Conflicts, *out.conflict)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(result.Conflicts, func(i, j int) bool { return result.Conflicts[i].RoomNumber < result.Conflicts[j].RoomNumber })
	sort.Slice(result.FailedRooms, func(i, j int) bool { return result.FailedRooms[i].Room < result.FailedRooms[j].Room })

	if wrote {
		result.NewAchievements = append(result.NewAchievements, s.evaluate(ctx, log, userID)...)
	}

	log.Info("progress synced",
		"rooms", len(rooms),
		"conflicts", result.ConflictsResolved,
		"failed", len(result.FailedRooms),
		"new_achievements", len(result.NewAchievements))
	return result, nil
}

type roomOutcome struct {
	record   models.RoomProgress
	conflict *models.ConflictDetail
	wrote    bool
	err      error
}

func (s *ProgressService) syncRoom(ctx context.Context, local, server *models.RoomProgress, now time.Time) roomOutcome {
	res := progress.Resolve(local, server, now)
	if local == nil {
		return roomOutcome{record: res.Record}
	}

	next := res.Record
	if server == nil {
		next.Version = 0
		if next.LastAccessed.IsZero() {
			next.LastAccessed = models.At(now)
		}
	}
	progress.KeepStored(server, &next)
	progress.Rescore(&next)
	progress.Transition(server, &next, s.threshold, now)

	out := roomOutcome{}
	if res.Detected {
		out.conflict = &models.ConflictDetail{
			RoomNumber:         next.RoomNumber,
			Reason:             res.Reason,
			LocalCompletion:    local.CompletionPercentage,
			ServerCompletion:   server.CompletionPercentage,
			ResolvedCompletion: next.CompletionPercentage,
		}
	}

	if server != nil && next.Equal(*server) {
		out.record = *server
		return out
	}
	if err := s.store.PutRoomProgress(ctx, &next); err != nil {
		out.err = err
		return out
	}
	out.record = next
	out.wrote = true
	return out
}

// RecordEvent applies one telemetry event to the room and returns the
// updated room data.
func (s *ProgressService) RecordEvent(ctx context.Context, userID, room int, e progress.Event) (*models.RoomData, error) {
	if userID <= 0 {
		return nil, models.InvalidInput("user_id", "must be positive, got %d", userID)
	}
	if !models.ValidRoom(room) {
		return nil, models.InvalidInput("room_number", "must be within 1..%d, got %d", models.NumRooms, room)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	stored, err := s.store.GetRoomProgress(ctx, userID, room)
	if err != nil {
		return nil, fmt.Errorf("failed to load room %d: %w", room, err)
	}

	var next models.RoomProgress
	if stored != nil {
		next = stored.Clone()
	} else {
		next = models.NewRoomProgress(userID, room)
	}

	now := s.clock.Now()
	if err := progress.ApplyEvent(&next, e); err != nil {
		return nil, err
	}
	if e.Type == progress.EventRoomCompleted {
		next.CompletionStatus = models.StatusCompleted
	}
	next.LastAccessed = models.At(now)
	progress.Rescore(&next)
	completed := progress.Transition(stored, &next, s.threshold, now)

	if err := s.store.PutRoomProgress(ctx, &next); err != nil {
		return nil, fmt.Errorf("failed to save room %d: %w", room, err)
	}

	log := s.log.With("user_id", userID, "room", room)
	if completed {
		log.Info("room completed", "room_name", models.RoomName(room), "attempts", next.Attempts)
	}
	s.evaluate(ctx, log, userID)

	data := next.RoomData.Clone()
	return &data, nil
}

// evaluate runs achievement evaluation after a write. Failures are logged
// and never undo the write.
func (s *ProgressService) evaluate(ctx context.Context, log *logger.Log, userID int) []models.AchievementRecord {
	if s.achievements == nil {
		return nil
	}
	awarded, err := s.achievements.EvaluateAchievements(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("achievement evaluation failed")
	}
	return awarded
}

// GetProgress returns every stored room of the user with its summary.
func (s *ProgressService) GetProgress(ctx context.Context, userID int) ([]models.RoomProgress, models.ProgressSummary, error) {
	rooms, err := s.store.ListRoomProgress(ctx, userID)
	if err != nil {
		return nil, models.ProgressSummary{}, fmt.Errorf("failed to load progress: %w", err)
	}
	return rooms, progress.Summarize(rooms), nil
}

// GetRoomProgress returns a single room, or models.ErrNotFound.
func (s *ProgressService) GetRoomProgress(ctx context.Context, userID, room int) (*models.RoomProgress, error) {
	if !models.ValidRoom(room) {
		return nil, models.InvalidInput("room_number", "must be within 1..%d, got %d", models.NumRooms, room)
	}
	p, err := s.store.GetRoomProgress(ctx, userID, room)
	if err != nil {
		return nil, fmt.Errorf("failed to load room %d: %w", room, err)
	}
	if p == nil {
		return nil, fmt.Errorf("room %d: %w", room, models.ErrNotFound)
	}
	return p, nil
}

func roomKeys(a, b map[int]*models.RoomProgress) []int {
	seen := make(map[int]bool, len(a)+len(b))
	var keys []int
	for _, m := range []map[int]*models.RoomProgress{a, b} {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Ints(keys)
	return keys
}
