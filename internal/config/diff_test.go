package config

import (
	"testing"
	"time"

	"github.com/akalogirou/weft/internal/quality"
)

func TestDiff_NoChanges(t *testing.T) {
	cfg := &Config{
		Scheduler: SchedulerConfig{PollInterval: 30 * time.Second},
		Quality:   QualityConfig{Mode: "degrade", GlobalMin: 0.5},
		Web:       WebConfig{Port: 8080},
	}
	d := Diff(cfg, cfg)
	if d.HasChanges() {
		t.Error("expected no changes")
	}
	if len(d.NonReloadable) != 0 {
		t.Errorf("expected no warnings, got %v", d.NonReloadable)
	}
}

func TestDiff_SchedulerChanged(t *testing.T) {
	old := &Config{Scheduler: SchedulerConfig{PollInterval: 30 * time.Second}}
	new := &Config{Scheduler: SchedulerConfig{PollInterval: 60 * time.Second}}
	d := Diff(old, new)
	if !d.SchedulerChanged {
		t.Error("expected scheduler changed")
	}
	if d.NewPollInterval.PollInterval != 60*time.Second {
		t.Errorf("expected 60s, got %v", d.NewPollInterval.PollInterval)
	}
}

func TestDiff_QualityChanged(t *testing.T) {
	old := &Config{Quality: QualityConfig{Mode: "degrade"}}
	new := &Config{Quality: QualityConfig{
		Mode: "fail",
		Thresholds: map[string][]quality.Threshold{
			"retrieval": {{Metric: "accuracy", MinValue: 0.8, Weight: 1}},
		},
	}}
	d := Diff(old, new)
	if !d.QualityChanged {
		t.Error("expected quality changed")
	}
	if d.NewQuality.Mode != "fail" {
		t.Errorf("expected fail mode, got %s", d.NewQuality.Mode)
	}
}

func TestDiff_NonReloadable(t *testing.T) {
	old := &Config{
		Web:   WebConfig{Port: 8080},
		NATS:  NATSConfig{Port: 4222},
		Vault: VaultConfig{Passphrase: "old"},
	}
	new := &Config{
		Web:   WebConfig{Port: 9090},
		NATS:  NATSConfig{Port: 4333},
		Vault: VaultConfig{Passphrase: "new"},
	}
	d := Diff(old, new)
	if d.HasChanges() {
		t.Error("non-reloadable fields must not count as changes")
	}
	if len(d.NonReloadable) != 3 {
		t.Errorf("expected 3 non-reloadable warnings, got %v", d.NonReloadable)
	}
}

func TestDiff_PoolChanged(t *testing.T) {
	old := &Config{Pool: PoolConfig{MaxPerAddress: 4}}
	new := &Config{Pool: PoolConfig{MaxPerAddress: 8}}
	d := Diff(old, new)
	found := false
	for _, f := range d.NonReloadable {
		if f == "pool" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected pool in non-reloadable list, got %v", d.NonReloadable)
	}
}
