package application

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/tweetsweep/internal/purge/domain"
)

// itemTimeLayouts are tried in order when reading an item's created_at.
var itemTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RubyDate, // archive export: "Wed Oct 10 20:19:24 +0000 2018"
}

// boundLayouts are accepted for --before and --after.
var boundLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseBound parses a user supplied date bound. Bounds without a zone are UTC.
func ParseBound(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range boundLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", value)
}

// parseItemTime reads a created_at value. The second result is false when the
// value is missing or cannot be parsed.
func parseItemTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if strings.HasSuffix(value, "z") {
		value = strings.TrimSuffix(value, "z") + "Z"
	}
	for _, layout := range itemTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// StageResult describes what one filter stage did.
type StageResult struct {
	Stage   string
	Value   string
	Before  int
	After   int
	Removed int
}

type filterStage struct {
	name  string
	value string
	keep  func(domain.Item) bool
}

// FilterPipeline applies the criteria stages in a fixed order:
// before, after, contains, exclude.
type FilterPipeline struct {
	logger *slog.Logger
}

// NewFilterPipeline creates a pipeline that logs per stage removals.
func NewFilterPipeline(logger *slog.Logger) *FilterPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilterPipeline{logger: logger}
}

// Apply returns the items that pass every configured criterion.
func (p *FilterPipeline) Apply(items []domain.Item, criteria domain.FilterCriteria) ([]domain.Item, []StageResult) {
	stages := buildStages(criteria)
	results := make([]StageResult, 0, len(stages))

	current := items
	for _, stage := range stages {
		kept := make([]domain.Item, 0, len(current))
		for _, item := range current {
			if stage.keep(item) {
				kept = append(kept, item)
			}
		}
		result := StageResult{
			Stage:   stage.name,
			Value:   stage.value,
			Before:  len(current),
			After:   len(kept),
			Removed: len(current) - len(kept),
		}
		p.logger.Info("filter applied",
			"stage", result.Stage,
			"value", result.Value,
			"before_count", result.Before,
			"after_count", result.After,
			"removed", result.Removed,
		)
		results = append(results, result)
		current = kept
	}

	return current, results
}

func buildStages(c domain.FilterCriteria) []filterStage {
	var stages []filterStage
	if c.Before != nil {
		bound := c.Before.UTC()
		stages = append(stages, filterStage{
			name:  "before",
			value: bound.Format(time.RFC3339),
			keep: func(item domain.Item) bool {
				t, ok := parseItemTime(item.CreatedAt)
				return !ok || t.Before(bound)
			},
		})
	}
	if c.After != nil {
		bound := c.After.UTC()
		stages = append(stages, filterStage{
			name:  "after",
			value: bound.Format(time.RFC3339),
			keep: func(item domain.Item) bool {
				t, ok := parseItemTime(item.CreatedAt)
				return !ok || t.After(bound)
			},
		})
	}
	if c.Contains != "" {
		needle := strings.ToLower(c.Contains)
		stages = append(stages, filterStage{
			name:  "contains",
			value: c.Contains,
			keep: func(item domain.Item) bool {
				return item.Text != "" && strings.Contains(strings.ToLower(item.Text), needle)
			},
		})
	}
	if c.Exclude != "" {
		needle := strings.ToLower(c.Exclude)
		stages = append(stages, filterStage{
			name:  "exclude",
			value: c.Exclude,
			keep: func(item domain.Item) bool {
				return !strings.Contains(strings.ToLower(item.Text), needle)
			},
		})
	}
	return stages
}
