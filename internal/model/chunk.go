package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// ChunkConfig bounds the adaptive chunk sizing used for large batches.
type ChunkConfig struct {
	Min             int           `json:"min"`
	Max             int           `json:"max"`
	MemoryThreshold float64       `json:"memory_threshold"`
	Pause           time.Duration `json:"pause"`
}

// DefaultChunkConfig mirrors the production defaults: chunks of 5..15
// queries, back off above 80% memory use, 2s pause between chunks.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Min:             5,
		Max:             15,
		MemoryThreshold: 0.8,
		Pause:           2 * time.Second,
	}
}

// Validate checks the bounds hold together.
func (c ChunkConfig) Validate() error {
	if c.Min < 1 {
		return eris.Errorf("model: chunk min must be >= 1, got %d", c.Min)
	}
	if c.Max < c.Min {
		return eris.Errorf("model: chunk max %d below min %d", c.Max, c.Min)
	}
	if c.MemoryThreshold <= 0 || c.MemoryThreshold > 1 {
		return eris.Errorf("model: memory threshold must be in (0,1], got %g", c.MemoryThreshold)
	}
	return nil
}

// Clamp bounds size into [Min, Max].
func (c ChunkConfig) Clamp(size int) int {
	if size < c.Min {
		return c.Min
	}
	if size > c.Max {
		return c.Max
	}
	return size
}
