package daemon

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Admin.Host != "127.0.0.1" {
		t.Errorf("Admin.Host = %q, want %q", cfg.Admin.Host, "127.0.0.1")
	}
	if cfg.Admin.Port != 9977 {
		t.Errorf("Admin.Port = %d, want %d", cfg.Admin.Port, 9977)
	}
	if cfg.Tunables.MaxConcurrentRequests != 512 {
		t.Errorf("Tunables.MaxConcurrentRequests = %d, want %d", cfg.Tunables.MaxConcurrentRequests, 512)
	}
	if cfg.Tunables.RewardFactor != 0.4 {
		t.Errorf("Tunables.RewardFactor = %v, want %v", cfg.Tunables.RewardFactor, 0.4)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RTUNED_HOME", dir)

	cfg := DefaultConfig()
	cfg.Tunables.PenaltyFactor = 9
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Tunables.PenaltyFactor != 9 {
		t.Errorf("PenaltyFactor = %d, want 9", loaded.Tunables.PenaltyFactor)
	}
}

func TestAsDurations(t *testing.T) {
	tun := TunablesConfig{PulseDurationMS: 2000, GCDurationMS: 5000, RateLimiterDeltaMS: 50}
	pulse, gc, delta := tun.asDurations()
	if pulse.Milliseconds() != 2000 {
		t.Errorf("pulse = %v, want 2000ms", pulse)
	}
	if gc.Milliseconds() != 5000 {
		t.Errorf("gc = %v, want 5000ms", gc)
	}
	if delta.Milliseconds() != 50 {
		t.Errorf("delta = %v, want 50ms", delta)
	}
}
