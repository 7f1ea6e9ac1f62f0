package config

import "reflect"

// Diff describes what changed between two configs.
type Diff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PipelineChanged means the correction pipeline must be rebuilt.
	PipelineChanged bool

	// EnhancementChanged means the enhancement gateway must be rebuilt.
	EnhancementChanged bool

	// RestartRequired names changed sections that only take effect after a
	// restart.
	RestartRequired []string
}

// Empty reports whether nothing relevant changed.
func (d Diff) Empty() bool {
	return !d.LogLevelChanged && !d.PipelineChanged && !d.EnhancementChanged && len(d.RestartRequired) == 0
}

// Compare returns what changed from old to new.
func Compare(old, new *Config) Diff {
	var d Diff
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.PipelineChanged = !reflect.DeepEqual(old.Pipeline, new.Pipeline)
	d.EnhancementChanged = !reflect.DeepEqual(old.Enhancement, new.Enhancement)

	restart := []struct {
		name    string
		changed bool
	}{
		{"server.status_addr", old.Server.StatusAddr != new.Server.StatusAddr},
		{"providers", !reflect.DeepEqual(old.Providers, new.Providers)},
		{"flows", !reflect.DeepEqual(old.Flows, new.Flows)},
		{"capture", old.Capture != new.Capture},
		{"delivery", !reflect.DeepEqual(old.Delivery, new.Delivery)},
		{"history", old.History != new.History},
	}
	for _, s := range restart {
		if s.changed {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	return d
}
