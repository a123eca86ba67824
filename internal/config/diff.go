package config

import "reflect"

// ConfigDiff describes what changed between two loaded configs. Only the
// scheduler poll interval and quality settings apply without a restart;
// everything else is reported so the operator knows a reload did not take.
type ConfigDiff struct {
	SchedulerChanged bool
	NewPollInterval  SchedulerConfig

	QualityChanged bool
	NewQuality     QualityConfig

	// Fields that need a restart to take effect (logged as warnings).
	NonReloadable []string
}

// HasChanges reports whether any reloadable field changed.
func (d *ConfigDiff) HasChanges() bool {
	return d.SchedulerChanged || d.QualityChanged
}

// Diff compares two configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	var d ConfigDiff

	if old.Scheduler.PollInterval != new.Scheduler.PollInterval {
		d.SchedulerChanged = true
		d.NewPollInterval = new.Scheduler
	}

	if !reflect.DeepEqual(old.Quality, new.Quality) {
		d.QualityChanged = true
		d.NewQuality = new.Quality
	}

	if !reflect.DeepEqual(old.Engine, new.Engine) {
		d.NonReloadable = append(d.NonReloadable, "engine")
	}
	if old.NATS != new.NATS {
		d.NonReloadable = append(d.NonReloadable, "nats")
	}
	if old.Catalog != new.Catalog {
		d.NonReloadable = append(d.NonReloadable, "catalog")
	}
	if old.Pool != new.Pool {
		d.NonReloadable = append(d.NonReloadable, "pool")
	}
	if !reflect.DeepEqual(old.RPC, new.RPC) {
		d.NonReloadable = append(d.NonReloadable, "rpc")
	}
	if old.Store != new.Store {
		d.NonReloadable = append(d.NonReloadable, "store")
	}
	if old.Web != new.Web {
		d.NonReloadable = append(d.NonReloadable, "web")
	}
	if old.Notify != new.Notify {
		d.NonReloadable = append(d.NonReloadable, "notify")
	}
	if old.Vault.Passphrase != new.Vault.Passphrase {
		d.NonReloadable = append(d.NonReloadable, "vault.passphrase")
	}

	return d
}
