package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchReport_Summarize(t *testing.T) {
	t.Parallel()

	report := BatchReport{
		Results: []MatchResult{
			{Category: MatchExact},
			{Category: MatchExact},
			{Category: MatchPartial},
			{Category: MatchNone},
			{Category: MatchNone, Err: "navigation failed"},
		},
	}
	report.Summarize()

	assert.Equal(t, 2, report.Exact)
	assert.Equal(t, 1, report.Partial)
	assert.Equal(t, 1, report.None)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 5, report.Total())
}

func TestMatchResult_Status(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result MatchResult
		want   string
	}{
		{"exact", MatchResult{Category: MatchExact}, "Match"},
		{"partial", MatchResult{Category: MatchPartial}, "Partial Match"},
		{"none", MatchResult{Category: MatchNone}, "No Match"},
		{"error wins over category", MatchResult{Category: MatchExact, Err: "boom"}, "Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.result.Status())
		})
	}
}

func TestMatchResult_TopMatch(t *testing.T) {
	t.Parallel()

	_, ok := MatchResult{}.TopMatch()
	assert.False(t, ok)

	r := MatchResult{Candidates: []Candidate{
		{Record: PersonRecord{Name: "John Smith"}, Confidence: 1.0},
		{Record: PersonRecord{Name: "Jon Smith"}, Confidence: 0.5},
	}}
	top, ok := r.TopMatch()
	require.True(t, ok)
	assert.Equal(t, "John Smith", top.Record.Name)
}

func TestMatchCategory_Rank(t *testing.T) {
	t.Parallel()

	assert.Greater(t, MatchExact.Rank(), MatchPartial.Rank())
	assert.Greater(t, MatchPartial.Rank(), MatchNone.Rank())
}

func TestChunkConfig_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultChunkConfig().Validate())

	bad := []ChunkConfig{
		{Min: 0, Max: 10, MemoryThreshold: 0.8},
		{Min: 10, Max: 5, MemoryThreshold: 0.8},
		{Min: 5, Max: 10, MemoryThreshold: 0},
		{Min: 5, Max: 10, MemoryThreshold: 1.2},
	}
	for _, cfg := range bad {
		assert.Error(t, cfg.Validate())
	}
}

func TestChunkConfig_Clamp(t *testing.T) {
	t.Parallel()

	cfg := ChunkConfig{Min: 5, Max: 15, MemoryThreshold: 0.8, Pause: 2 * time.Second}
	assert.Equal(t, 5, cfg.Clamp(1))
	assert.Equal(t, 10, cfg.Clamp(10))
	assert.Equal(t, 15, cfg.Clamp(40))
}
