package resilience

import (
	"reflect"
	"testing"
	"time"
)

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(5, 500, 10_000)
	if cfg.MaxAttempts != 5 {
		t.Errorf("expected 5 attempts, got %d", cfg.MaxAttempts)
	}
	if cfg.InitialBackoff != 500*time.Millisecond {
		t.Errorf("expected 500ms initial backoff, got %v", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != 10*time.Second {
		t.Errorf("expected 10s max backoff, got %v", cfg.MaxBackoff)
	}
	if cfg.Multiplier != 2.0 {
		t.Errorf("expected default multiplier, got %g", cfg.Multiplier)
	}
}

func TestFromConfig_ZeroKeepsDefaults(t *testing.T) {
	cfg := FromConfig(0, 0, 0)
	def := DefaultRetryConfig()
	if !reflect.DeepEqual(cfg, def) {
		t.Errorf("expected defaults %+v, got %+v", def, cfg)
	}
}
