package progression

import (
	_ "embed"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/thomasnguyen/corgi-quest/internal/model"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// ActivityType is one entry of the activity catalog.
type ActivityType struct {
	Name     string                 `yaml:"name" json:"name"`
	Aliases  []string               `yaml:"aliases" json:"aliases,omitempty"`
	BaseRate int                    `yaml:"baseRate" json:"baseRate"`
	Split    map[model.StatType]int `yaml:"split" json:"split"`
}

// Catalog indexes activity types by lowercased name and alias.
type Catalog struct {
	types []ActivityType
	index map[string]int
}

// LoadCatalog parses and validates a YAML catalog document.
func LoadCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Activities []ActivityType `yaml:"activities"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse activity catalog: %w", err)
	}
	if len(doc.Activities) == 0 {
		return nil, fmt.Errorf("activity catalog is empty")
	}
	c := &Catalog{index: make(map[string]int)}
	for _, at := range doc.Activities {
		if err := at.validate(); err != nil {
			return nil, err
		}
		pos := len(c.types)
		c.types = append(c.types, at)
		for _, key := range append([]string{at.Name}, at.Aliases...) {
			k := normalize(key)
			if prev, ok := c.index[k]; ok && prev != pos {
				return nil, fmt.Errorf("activity catalog: %q is used by both %s and %s", key, c.types[prev].Name, at.Name)
			}
			c.index[k] = pos
		}
	}
	return c, nil
}

func (at ActivityType) validate() error {
	if strings.TrimSpace(at.Name) == "" {
		return fmt.Errorf("activity catalog: entry without name")
	}
	if at.BaseRate <= 0 {
		return fmt.Errorf("activity catalog: %s has non-positive baseRate", at.Name)
	}
	sum := 0
	for stat, pct := range at.Split {
		if !stat.Valid() {
			return fmt.Errorf("activity catalog: %s has unknown stat %q", at.Name, stat)
		}
		if pct < 0 {
			return fmt.Errorf("activity catalog: %s has negative split for %s", at.Name, stat)
		}
		sum += pct
	}
	if sum != 100 {
		return fmt.Errorf("activity catalog: %s split sums to %d, want 100", at.Name, sum)
	}
	return nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// DefaultCatalog returns the embedded catalog. It panics if the embedded document is invalid.
func DefaultCatalog() *Catalog {
	defaultOnce.Do(func() {
		c, err := LoadCatalog(defaultCatalogYAML)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Lookup finds an activity type by name or alias, case-insensitively.
func (c *Catalog) Lookup(name string) (ActivityType, bool) {
	i, ok := c.index[normalize(name)]
	if !ok {
		return ActivityType{}, false
	}
	return c.types[i], true
}

// Types returns the catalog entries in document order.
func (c *Catalog) Types() []ActivityType {
	out := make([]ActivityType, len(c.types))
	copy(out, c.types)
	return out
}

// CalculateActivityXP converts a duration into per-stat XP gains.
// total = round(minutes/10 * baseRate); each stat gets round(total * pct / 100).
func CalculateActivityXP(at ActivityType, minutes int) map[model.StatType]int {
	gains := make(map[model.StatType]int, len(at.Split))
	if minutes <= 0 {
		return gains
	}
	total := math.Round(float64(minutes) / 10 * float64(at.BaseRate))
	stats := make([]string, 0, len(at.Split))
	for s := range at.Split {
		stats = append(stats, string(s))
	}
	sort.Strings(stats)
	for _, s := range stats {
		st := model.StatType(s)
		xp := int(math.Round(total * float64(at.Split[st]) / 100))
		if xp > 0 {
			gains[st] = xp
		}
	}
	return gains
}

// Report builds a complete ActivityReport for a catalog activity.
func (c *Catalog) Report(name string, minutes int) (*model.ActivityReport, error) {
	at, ok := c.Lookup(name)
	if !ok {
		return nil, model.NewValidationError("activityType", fmt.Sprintf("unknown activity type %q", name))
	}
	if minutes <= 0 {
		return nil, model.NewValidationError("durationMinutes", "must be positive")
	}
	gains := CalculateActivityXP(at, minutes)
	physical, mental := PointsFor(gains)
	m := minutes
	return model.NewActivityReport(at.Name, &m, gains, physical, mental), nil
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
