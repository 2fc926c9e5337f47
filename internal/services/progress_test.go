package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tahcohcat/ascended-progress/internal/achievements"
	"github.com/tahcohcat/ascended-progress/internal/database"
	"github.com/tahcohcat/ascended-progress/internal/logger"
	"github.com/tahcohcat/ascended-progress/internal/models"
	"github.com/tahcohcat/ascended-progress/internal/notify"
	"github.com/tahcohcat/ascended-progress/internal/progress"
)

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() Clock { return ClockFunc(func() time.Time { return fixedNow }) }

type capturePublisher struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (p *capturePublisher) Publish(_ context.Context, n notify.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, n)
	return nil
}

type fixture struct {
	store     *database.MemoryStore
	progress  *ProgressService
	awards    *AchievementService
	published *capturePublisher
}

func newFixture(catalog ...models.BadgeDefinition) *fixture {
	store := database.NewMemoryStore()
	pub := &capturePublisher{}
	awards := NewAchievementService(store, store, achievements.NewCatalog(achievements.StaticSource(catalog)), pub).
		WithClock(fixedClock()).
		WithLogger(logger.Nop())
	svc := NewProgressService(store, awards, progress.DefaultCompletionThreshold, 3).
		WithClock(fixedClock()).
		WithLogger(logger.Nop())
	return &fixture{store: store, progress: svc, awards: awards, published: pub}
}

func roomWith(room int, puzzles ...string) models.RoomProgress {
	p := models.NewRoomProgress(0, room)
	p.CompletionStatus = models.StatusInProgress
	p.Totals = models.RoomTotals{Puzzles: 2, Challenges: 2, Objectives: 1, Secrets: 0}
	for _, id := range puzzles {
		p.RoomData.PuzzlesCompleted.Add(id)
	}
	return p
}

func TestSyncProgress_NewRoomsAreStored(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	local := roomWith(1, "p1", "p2")
	local.CompletionPercentage = 99 // ignored, derived from the data
	local.TimeSpentSeconds = 120

	res, err := f.progress.SyncProgress(ctx, 11, map[int]models.RoomProgress{1: local})
	if err != nil {
		t.Fatalf("SyncProgress: %v", err)
	}
	if res.SyncID == "" {
		t.Error("missing sync id")
	}
	if res.ConflictsResolved != 0 || len(res.FailedRooms) != 0 {
		t.Errorf("conflicts %d, failed %v; want none", res.ConflictsResolved, res.FailedRooms)
	}

	got := res.Merged[1]
	if got.CompletionPercentage != 35 {
		t.Errorf("completion = %d, want 35 (2/2 puzzles)", got.CompletionPercentage)
	}
	if got.UserID != 11 || got.Version != 1 {
		t.Errorf("merged user %d version %d; want 11 and 1", got.UserID, got.Version)
	}

	stored, _ := f.store.GetRoomProgress(ctx, 11, 1)
	if stored == nil || stored.TimeSpentSeconds != 120 {
		t.Fatalf("stored = %+v", stored)
	}
}

func TestSyncProgress_ServerHigherCompletion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	server := roomWith(2, "p1", "p2")
	server.UserID = 5
	server.RoomData.ExplorationPercentage = 100
	server.RoomData.ChallengesSolved.Add("c1")
	server.TimeSpentSeconds = 50
	server.LastAccessed = models.At(fixedNow.Add(-time.Hour))
	progress.Rescore(&server)
	if server.CompletionPercentage != 70 {
		t.Fatalf("server completion = %d, want 70", server.CompletionPercentage)
	}
	if err := f.store.PutRoomProgress(ctx, &server); err != nil {
		t.Fatal(err)
	}

	local := roomWith(2, "p1")
	local.RoomData.ExplorationPercentage = 40
	local.TimeSpentSeconds = 100
	local.LastAccessed = models.At(fixedNow)

	res, err := f.progress.SyncProgress(ctx, 5, map[int]models.RoomProgress{2: local})
	if err != nil {
		t.Fatalf("SyncProgress: %v", err)
	}
	if res.ConflictsResolved != 1 || len(res.Conflicts) != 1 {
		t.Fatalf("conflicts = %d %v, want 1", res.ConflictsResolved, res.Conflicts)
	}
	c := res.Conflicts[0]
	if c.Reason != progress.ReasonServerHigherCompletion || c.ServerCompletion != 70 || c.LocalCompletion != 28 || c.ResolvedCompletion != 70 {
		t.Errorf("conflict = %+v", c)
	}

	merged := res.Merged[2]
	if merged.TimeSpentSeconds != 100 {
		t.Errorf("time spent = %d, want max 100", merged.TimeSpentSeconds)
	}
	if merged.RoomData.PuzzlesCompleted.Len() != 2 {
		t.Errorf("puzzles = %v, want both kept", merged.RoomData.PuzzlesCompleted.IDs())
	}
	if merged.Version != 2 {
		t.Errorf("version = %d, want 2 after one update", merged.Version)
	}
}

func TestSyncProgress_SetsNeverShrink(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	server := roomWith(3, "p1", "p2")
	server.UserID = 8
	progress.Rescore(&server)
	if err := f.store.PutRoomProgress(ctx, &server); err != nil {
		t.Fatal(err)
	}

	// local wins on completion but lacks p2
	local := roomWith(3, "p1")
	local.RoomData.ExplorationPercentage = 100
	local.RoomData.SecretsFound.Add("s1")

	res, err := f.progress.SyncProgress(ctx, 8, map[int]models.RoomProgress{3: local})
	if err != nil {
		t.Fatal(err)
	}
	got := res.Merged[3]
	if !got.RoomData.PuzzlesCompleted.Has("p2") || !got.RoomData.SecretsFound.Has("s1") {
		t.Errorf("merged sets = %v / %v", got.RoomData.PuzzlesCompleted.IDs(), got.RoomData.SecretsFound.IDs())
	}
	if want := progress.Score(got.RoomData, got.Totals); got.CompletionPercentage != want {
		t.Errorf("completion %d not rescored, want %d", got.CompletionPercentage, want)
	}
}

func TestSyncProgress_ResyncIsNoOp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.progress.SyncProgress(ctx, 3, map[int]models.RoomProgress{1: roomWith(1, "p1")})
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.progress.SyncProgress(ctx, 3, first.Merged)
	if err != nil {
		t.Fatal(err)
	}
	if second.ConflictsResolved != 0 {
		t.Errorf("conflicts = %d, want 0", second.ConflictsResolved)
	}
	stored, _ := f.store.GetRoomProgress(ctx, 3, 1)
	if stored.Version != 1 {
		t.Errorf("version = %d, want 1 (no second write)", stored.Version)
	}
}

func TestSyncProgress_ServerOnlyRoomsReturned(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	server := roomWith(4, "p1")
	server.UserID = 6
	progress.Rescore(&server)
	if err := f.store.PutRoomProgress(ctx, &server); err != nil {
		t.Fatal(err)
	}

	res, err := f.progress.SyncProgress(ctx, 6, map[int]models.RoomProgress{1: roomWith(1)})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Merged) != 2 {
		t.Fatalf("merged rooms = %d, want 2", len(res.Merged))
	}
	if res.Merged[4].Version != 1 {
		t.Errorf("server-only room rewritten: version %d", res.Merged[4].Version)
	}
}

func TestSyncProgress_RejectsInvalidInputBeforeWriting(t *testing.T) {
	tests := []struct {
		name  string
		local map[int]models.RoomProgress
	}{
		{"room out of range", map[int]models.RoomProgress{9: roomWith(9)}},
		{"key mismatch", map[int]models.RoomProgress{1: roomWith(2)}},
		{"negative time", func() map[int]models.RoomProgress {
			bad := roomWith(2)
			bad.TimeSpentSeconds = -1
			return map[int]models.RoomProgress{1: roomWith(1, "p1"), 2: bad}
		}()},
		{"unknown status", func() map[int]models.RoomProgress {
			bad := roomWith(1)
			bad.CompletionStatus = "abandoned"
			return map[int]models.RoomProgress{1: bad}
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()
			_, err := f.progress.SyncProgress(ctx, 1, tt.local)
			if !errors.Is(err, models.ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
			if rooms, _ := f.store.ListRoomProgress(ctx, 1); len(rooms) != 0 {
				t.Errorf("%d rooms written despite invalid input", len(rooms))
			}
		})
	}

	if _, err := newFixture().progress.SyncProgress(context.Background(), 0, nil); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("user 0: err = %v, want ErrInvalidInput", err)
	}
}

// flakyStore fails writes for selected rooms and can fail listing.
type flakyStore struct {
	*database.MemoryStore
	putErr  map[int]error
	listErr error
}

func (s *flakyStore) PutRoomProgress(ctx context.Context, p *models.RoomProgress) error {
	if err := s.putErr[p.RoomNumber]; err != nil {
		return err
	}
	return s.MemoryStore.PutRoomProgress(ctx, p)
}

func (s *flakyStore) ListRoomProgress(ctx context.Context, userID int) ([]models.RoomProgress, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.MemoryStore.ListRoomProgress(ctx, userID)
}

func TestSyncProgress_PartialFailure(t *testing.T) {
	store := &flakyStore{
		MemoryStore: database.NewMemoryStore(),
		putErr: map[int]error{
			2: models.ErrConflictingWriteLost,
			3: models.Storage("put room progress", errors.New("disk full")),
		},
	}
	svc := NewProgressService(store, nil, 0, 2).WithClock(fixedClock()).WithLogger(logger.Nop())

	res, err := svc.SyncProgress(context.Background(), 2, map[int]models.RoomProgress{
		1: roomWith(1, "p1"),
		2: roomWith(2, "p1"),
		3: roomWith(3, "p1"),
	})
	if err != nil {
		t.Fatalf("SyncProgress: %v", err)
	}
	if _, ok := res.Merged[1]; !ok {
		t.Error("healthy room missing from merged result")
	}
	if len(res.FailedRooms) != 2 {
		t.Fatalf("failed rooms = %+v, want 2", res.FailedRooms)
	}
	if f := res.FailedRooms[0]; f.Room != 2 || !f.Retryable {
		t.Errorf("room 2 failure = %+v, want retryable", f)
	}
	if f := res.FailedRooms[1]; f.Room != 3 || f.Retryable || !errors.Is(f.Err, models.ErrStorageUnavailable) {
		t.Errorf("room 3 failure = %+v, want storage unavailable", f)
	}
	if !errors.Is(res.Err(), models.ErrConflictingWriteLost) {
		t.Errorf("joined error = %v", res.Err())
	}
}

func TestSyncProgress_StorageUnavailable(t *testing.T) {
	store := &flakyStore{
		MemoryStore: database.NewMemoryStore(),
		listErr:     models.Storage("list room progress", errors.New("connection refused")),
	}
	svc := NewProgressService(store, nil, 0, 1).WithLogger(logger.Nop())
	_, err := svc.SyncProgress(context.Background(), 1, map[int]models.RoomProgress{1: roomWith(1)})
	if !errors.Is(err, models.ErrStorageUnavailable) {
		t.Errorf("err = %v, want ErrStorageUnavailable", err)
	}
}

func TestSyncProgress_AwardsBadges(t *testing.T) {
	f := newFixture(models.BadgeDefinition{ID: "first_steps", Name: "First Steps", RequirementType: models.RequirementAnyCompletion})
	res, err := f.progress.SyncProgress(context.Background(), 4, map[int]models.RoomProgress{1: roomWith(1, "p1")})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.NewAchievements) != 1 || res.NewAchievements[0].AchievementName != "first_steps" {
		t.Errorf("new achievements = %+v", res.NewAchievements)
	}
}

func TestRecordEvent_CompletesRoomAtThreshold(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	events := []progress.Event{
		{Type: progress.EventRoomEntered},
		{Type: progress.EventPuzzleSolved, ID: "p1"},
		{Type: progress.EventPuzzleSolved, ID: "p1"},
		{Type: progress.EventChallengeCompleted, ID: "c1"},
		{Type: progress.EventObjectiveCompleted, ID: "o1"},
		{Type: progress.EventExplorationUpdate, Percentage: 80},
	}
	for _, e := range events {
		if _, err := f.progress.RecordEvent(ctx, 1, 1, e); err != nil {
			t.Fatalf("%s: %v", e.Type, err)
		}
	}

	p, err := f.progress.GetRoomProgress(ctx, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if p.CompletionPercentage != 90 || p.Status() != models.StatusInProgress {
		t.Fatalf("after events: %d%% %s, want 90%% in_progress", p.CompletionPercentage, p.Status())
	}
	if p.RoomData.PuzzlesCompleted.Len() != 1 {
		t.Errorf("duplicate puzzle counted: %v", p.RoomData.PuzzlesCompleted.IDs())
	}

	data, err := f.progress.RecordEvent(ctx, 1, 1, progress.Event{Type: progress.EventSecretFound, ID: "s1"})
	if err != nil {
		t.Fatal(err)
	}
	if !data.SecretsFound.Has("s1") {
		t.Error("returned room data missing the secret")
	}

	p, _ = f.progress.GetRoomProgress(ctx, 1, 1)
	if p.CompletionPercentage != 95 || !p.Completed() {
		t.Errorf("got %d%% %s, want 95%% completed", p.CompletionPercentage, p.Status())
	}
	if p.Attempts != 1 || p.CompletedAt == nil || !p.CompletedAt.Equal(fixedNow) {
		t.Errorf("attempts %d completed at %v", p.Attempts, p.CompletedAt)
	}
}

func TestRecordEvent_RoomCompletedEvent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.progress.RecordEvent(ctx, 2, 5, progress.Event{Type: progress.EventRoomCompleted}); err != nil {
		t.Fatal(err)
	}
	p, _ := f.progress.GetRoomProgress(ctx, 2, 5)
	if !p.Completed() || p.Attempts != 1 {
		t.Errorf("status %s attempts %d", p.Status(), p.Attempts)
	}

	// a second completion does not count another attempt
	if _, err := f.progress.RecordEvent(ctx, 2, 5, progress.Event{Type: progress.EventRoomCompleted}); err != nil {
		t.Fatal(err)
	}
	p, _ = f.progress.GetRoomProgress(ctx, 2, 5)
	if p.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", p.Attempts)
	}
}

func TestRecordEvent_RejectsInvalid(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tests := []struct {
		name string
		room int
		e    progress.Event
	}{
		{"room zero", 0, progress.Event{Type: progress.EventRoomEntered}},
		{"room six", 6, progress.Event{Type: progress.EventRoomEntered}},
		{"unknown event", 1, progress.Event{Type: "teleported"}},
		{"missing id", 1, progress.Event{Type: progress.EventPuzzleSolved}},
		{"negative amount", 1, progress.Event{Type: progress.EventDeath, Amount: -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.progress.RecordEvent(ctx, 1, tt.room, tt.e); !errors.Is(err, models.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
	if rooms, _ := f.store.ListRoomProgress(ctx, 1); len(rooms) != 0 {
		t.Errorf("%d rooms written by rejected events", len(rooms))
	}
}

func TestGetRoomProgress_NotFound(t *testing.T) {
	f := newFixture()
	if _, err := f.progress.GetRoomProgress(context.Background(), 1, 2); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
