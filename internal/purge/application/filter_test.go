package application

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/tweetsweep/internal/purge/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(items []domain.Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func mustBound(t *testing.T, value string) *time.Time {
	t.Helper()
	bound, err := ParseBound(value)
	require.NoError(t, err)
	return &bound
}

func scenarioItems() []domain.Item {
	return []domain.Item{
		{ID: "1", Text: "hello", CreatedAt: "2022-01-01"},
		{ID: "2", Text: "buy crypto", CreatedAt: "2023-06-01"},
	}
}

func TestFilterPipeline_Scenarios(t *testing.T) {
	pipeline := NewFilterPipeline(nil)

	tests := []struct {
		name     string
		criteria func(t *testing.T) domain.FilterCriteria
		want     []string
	}{
		{
			name:     "no criteria keeps everything",
			criteria: func(t *testing.T) domain.FilterCriteria { return domain.FilterCriteria{} },
			want:     []string{"1", "2"},
		},
		{
			name: "before",
			criteria: func(t *testing.T) domain.FilterCriteria {
				return domain.FilterCriteria{Before: mustBound(t, "2023-01-01")}
			},
			want: []string{"1"},
		},
		{
			name: "after",
			criteria: func(t *testing.T) domain.FilterCriteria {
				return domain.FilterCriteria{After: mustBound(t, "2023-01-01")}
			},
			want: []string{"2"},
		},
		{
			name: "contains",
			criteria: func(t *testing.T) domain.FilterCriteria {
				return domain.FilterCriteria{Contains: "crypto"}
			},
			want: []string{"2"},
		},
		{
			name: "contains is case insensitive",
			criteria: func(t *testing.T) domain.FilterCriteria {
				return domain.FilterCriteria{Contains: "CRYPTO"}
			},
			want: []string{"2"},
		},
		{
			name: "exclude",
			criteria: func(t *testing.T) domain.FilterCriteria {
				return domain.FilterCriteria{Exclude: "crypto"}
			},
			want: []string{"1"},
		},
		{
			name: "bounds are strict",
			criteria: func(t *testing.T) domain.FilterCriteria {
				return domain.FilterCriteria{Before: mustBound(t, "2022-01-01")}
			},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := pipeline.Apply(scenarioItems(), tt.criteria(t))
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestFilterPipeline_DatesFailOpen(t *testing.T) {
	pipeline := NewFilterPipeline(nil)
	items := []domain.Item{
		{ID: "missing", Text: "no date"},
		{ID: "garbage", Text: "bad date", CreatedAt: "yesterday-ish"},
		{ID: "old", Text: "old", CreatedAt: "2020-05-05T10:00:00.000Z"},
	}

	t.Run("before", func(t *testing.T) {
		got, _ := pipeline.Apply(items, domain.FilterCriteria{Before: mustBound(t, "2000-01-01")})
		assert.Equal(t, []string{"missing", "garbage"}, ids(got))
	})

	t.Run("after", func(t *testing.T) {
		got, _ := pipeline.Apply(items, domain.FilterCriteria{After: mustBound(t, "2030-01-01")})
		assert.Equal(t, []string{"missing", "garbage"}, ids(got))
	})
}

func TestFilterPipeline_OrderIndependence(t *testing.T) {
	pipeline := NewFilterPipeline(nil)
	items := []domain.Item{
		{ID: "1", Text: "crypto moon", CreatedAt: "2021-01-01"},
		{ID: "2", Text: "crypto again", CreatedAt: "2024-01-01"},
		{ID: "3", Text: "lunch", CreatedAt: "2021-02-01"},
		{ID: "4", Text: "Crypto no date"},
	}
	before := mustBound(t, "2023-01-01")

	// Apply the two criteria one at a time in both orders.
	containsFirst, _ := pipeline.Apply(items, domain.FilterCriteria{Contains: "crypto"})
	containsFirst, _ = pipeline.Apply(containsFirst, domain.FilterCriteria{Before: before})

	beforeFirst, _ := pipeline.Apply(items, domain.FilterCriteria{Before: before})
	beforeFirst, _ = pipeline.Apply(beforeFirst, domain.FilterCriteria{Contains: "crypto"})

	combined, _ := pipeline.Apply(items, domain.FilterCriteria{Before: before, Contains: "crypto"})

	assert.Equal(t, []string{"1", "4"}, ids(combined))
	assert.Equal(t, ids(combined), ids(containsFirst))
	assert.Equal(t, ids(combined), ids(beforeFirst))
}

func TestFilterPipeline_StageResults(t *testing.T) {
	pipeline := NewFilterPipeline(nil)
	criteria := domain.FilterCriteria{
		Before:   mustBound(t, "2024-01-01"),
		Contains: "crypto",
		Exclude:  "buy",
	}

	got, stages := pipeline.Apply(scenarioItems(), criteria)
	assert.Empty(t, got)
	require.Len(t, stages, 3)

	assert.Equal(t, "before", stages[0].Stage)
	assert.Equal(t, 2, stages[0].Before)
	assert.Equal(t, 2, stages[0].After)

	assert.Equal(t, "contains", stages[1].Stage)
	assert.Equal(t, 1, stages[1].Removed)

	assert.Equal(t, "exclude", stages[2].Stage)
	assert.Equal(t, 1, stages[2].Before)
	assert.Equal(t, 0, stages[2].After)
}

func TestFilterPipeline_EmptyText(t *testing.T) {
	pipeline := NewFilterPipeline(nil)
	items := []domain.Item{{ID: "1"}}

	got, _ := pipeline.Apply(items, domain.FilterCriteria{Contains: "x"})
	assert.Empty(t, got)

	got, _ = pipeline.Apply(items, domain.FilterCriteria{Exclude: "x"})
	assert.Equal(t, []string{"1"}, ids(got))
}

func TestParseBound(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{input: "2023-01-01", want: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
		{input: " 2023-01-01 ", want: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
		{input: "2023-01-01T10:30:00", want: time.Date(2023, 1, 1, 10, 30, 0, 0, time.UTC)},
		{input: "2023-01-01T10:30:00+02:00", want: time.Date(2023, 1, 1, 8, 30, 0, 0, time.UTC)},
		{input: "01/02/2023", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBound(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestParseItemTime(t *testing.T) {
	want := time.Date(2018, 10, 10, 20, 19, 24, 0, time.UTC)
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"rfc3339", "2018-10-10T20:19:24Z", true},
		{"rfc3339 lower z", "2018-10-10T20:19:24z", true},
		{"rfc3339 millis", "2018-10-10T20:19:24.000Z", true},
		{"offset", "2018-10-10T22:19:24+02:00", true},
		{"naive", "2018-10-10T20:19:24", true},
		{"naive with fraction", "2018-10-10T20:19:24.000000", true},
		{"space separated", "2018-10-10 20:19:24", true},
		{"archive", "Wed Oct 10 20:19:24 +0000 2018", true},
		{"empty", "", false},
		{"garbage", "not a date", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseItemTime(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, want.Equal(got), "got %s", got)
			}
		})
	}
}
