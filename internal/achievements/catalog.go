package achievements

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tahcohcat/ascended-progress/internal/models"
)

//go:embed badges.yaml
var defaultCatalogYAML []byte

type catalogFile struct {
	Badges []models.BadgeDefinition `yaml:"badges"`
}

// ParseCatalog decodes and validates a YAML badge catalog.
func ParseCatalog(data []byte) ([]models.BadgeDefinition, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse badge catalog: %w", err)
	}

	seen := make(map[string]bool, len(f.Badges))
	for i, b := range f.Badges {
		switch {
		case strings.TrimSpace(b.ID) == "":
			return nil, fmt.Errorf("badge %d: missing id", i)
		case seen[b.ID]:
			return nil, fmt.Errorf("badge %s: duplicate id", b.ID)
		case !b.RequirementType.Valid():
			return nil, fmt.Errorf("badge %s: unknown requirement type %q", b.ID, b.RequirementType)
		case b.RoomID < 0 || b.RoomID > models.NumRooms:
			return nil, fmt.Errorf("badge %s: room %d out of range", b.ID, b.RoomID)
		case b.RequirementValue < 0:
			return nil, fmt.Errorf("badge %s: negative requirement value", b.ID)
		}
		seen[b.ID] = true
	}
	return f.Badges, nil
}

// LoadCatalog reads a catalog file. An empty path returns the built-in catalog.
func LoadCatalog(path string) ([]models.BadgeDefinition, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read badge catalog: %w", err)
	}
	return ParseCatalog(data)
}

// DefaultCatalog returns the built-in badge catalog.
func DefaultCatalog() []models.BadgeDefinition {
	badges, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic("embedded badge catalog is invalid: " + err.Error())
	}
	return badges
}

// Source supplies the authoritative badge list, typically the database.
type Source interface {
	ListBadges(ctx context.Context) ([]models.BadgeDefinition, error)
}

// StaticSource serves a fixed list of badges.
type StaticSource []models.BadgeDefinition

func (s StaticSource) ListBadges(context.Context) ([]models.BadgeDefinition, error) {
	return s, nil
}

// Catalog is a read-only in-memory copy of the badge catalog. It is loaded
// once and only changes when Refresh is called.
type Catalog struct {
	source Source

	mu       sync.RWMutex
	badges   []models.BadgeDefinition
	loaded   bool
	loadedAt time.Time
}

func NewCatalog(source Source) *Catalog {
	return &Catalog{source: source}
}

// Refresh reloads the catalog from its source.
func (c *Catalog) Refresh(ctx context.Context) error {
	badges, err := c.source.ListBadges(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh badge catalog: %w", err)
	}
	cp := make([]models.BadgeDefinition, len(badges))
	copy(cp, badges)

	c.mu.Lock()
	c.badges = cp
	c.loaded = true
	c.loadedAt = time.Now()
	c.mu.Unlock()
	return nil
}

// ListAll returns a copy of the catalog, loading it on first use.
func (c *Catalog) ListAll(ctx context.Context) ([]models.BadgeDefinition, error) {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if !loaded {
		if err := c.Refresh(ctx); err != nil {
			return nil, err
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.BadgeDefinition, len(c.badges))
	copy(out, c.badges)
	return out, nil
}

// LoadedAt reports when the catalog was last refreshed.
func (c *Catalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}
