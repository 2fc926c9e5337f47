package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tahcohcat/ascended-progress/internal/models"
)

type roomKey struct {
	userID int
	room   int
}

// MemoryStore keeps everything in process memory. It has the same write
// semantics as DB and is used for tests and database.driver=memory.
type MemoryStore struct {
	mu           sync.RWMutex
	progress     map[roomKey]models.RoomProgress
	achievements map[int][]models.AchievementRecord
	activities   []models.GameActivity
	badges       []models.BadgeDefinition
	nextID       int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		progress:     make(map[roomKey]models.RoomProgress),
		achievements: make(map[int][]models.AchievementRecord),
	}
}

func (m *MemoryStore) GetRoomProgress(_ context.Context, userID, room int) (*models.RoomProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.progress[roomKey{userID, room}]
	if !ok {
		return nil, nil
	}
	out := p.Clone()
	return &out, nil
}

func (m *MemoryStore) ListRoomProgress(_ context.Context, userID int) ([]models.RoomProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.RoomProgress
	for k, p := range m.progress {
		if k.userID == userID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomNumber < out[j].RoomNumber })
	return out, nil
}

func (m *MemoryStore) PutRoomProgress(_ context.Context, p *models.RoomProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := roomKey{p.UserID, p.RoomNumber}
	stored, exists := m.progress[k]
	switch {
	case p.Version == 0 && exists:
		return models.ErrConflictingWriteLost
	case p.Version != 0 && (!exists || stored.Version != p.Version):
		return models.ErrConflictingWriteLost
	}

	next := p.Clone()
	next.Version = p.Version + 1
	m.progress[k] = next
	p.Version = next.Version
	return nil
}

func (m *MemoryStore) ListEarnedBadges(_ context.Context, userID int) (map[models.BadgeKey]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	earned := make(map[models.BadgeKey]bool)
	for _, r := range m.achievements[userID] {
		earned[r.Key()] = true
	}
	return earned, nil
}

func (m *MemoryStore) ListAchievements(_ context.Context, userID int) ([]models.AchievementRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.AchievementRecord, len(m.achievements[userID]))
	copy(out, m.achievements[userID])
	return out, nil
}

func (m *MemoryStore) SaveAchievement(_ context.Context, rec models.AchievementRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.achievements[rec.UserID] {
		if r.Key() == rec.Key() {
			return false, nil
		}
	}
	m.achievements[rec.UserID] = append(m.achievements[rec.UserID], rec)
	return true, nil
}

func (m *MemoryStore) RecordActivity(_ context.Context, a *models.GameActivity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	m.activities = append(m.activities, *a)
	return nil
}

func (m *MemoryStore) ListActivities(_ context.Context, userID, limit int) ([]models.GameActivity, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.GameActivity
	for i := len(m.activities) - 1; i >= 0 && len(out) < limit; i-- {
		if m.activities[i].UserID == userID {
			out = append(out, m.activities[i])
		}
	}
	return out, nil
}

func (m *MemoryStore) ListBadges(context.Context) ([]models.BadgeDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.BadgeDefinition, len(m.badges))
	copy(out, m.badges)
	return out, nil
}

func (m *MemoryStore) SeedBadges(_ context.Context, badges []models.BadgeDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	have := make(map[string]bool, len(m.badges))
	for _, b := range m.badges {
		have[b.ID] = true
	}
	now := time.Now().UTC()
	for _, b := range badges {
		if have[b.ID] {
			continue
		}
		b.CreatedAt = now
		m.badges = append(m.badges, b)
		have[b.ID] = true
	}
	return nil
}
