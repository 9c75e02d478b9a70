package config

import (
	"maps"
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SessionChanged is set when voice, instructions, transcription or search
	// grounding changed. These take effect on the next connect.
	SessionChanged bool

	// CameraChanged is set when the camera send interval changed.
	CameraChanged bool

	// RestartRequired lists top-level sections whose changes are only picked
	// up after a process restart.
	RestartRequired []string
}

// Empty reports whether d carries no changes.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.SessionChanged && !d.CameraChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}

	oldS, newS := old.Session, new.Session
	if oldS.Voice != newS.Voice ||
		oldS.Instructions != newS.Instructions ||
		oldS.TranscriptionEnabled() != newS.TranscriptionEnabled() ||
		oldS.SearchGroundingEnabled() != newS.SearchGroundingEnabled() {
		d.SessionChanged = true
	}

	if old.Camera.SendInterval != new.Camera.SendInterval {
		d.CameraChanged = true
	}

	if old.MetricsAddr != new.MetricsAddr {
		d.RestartRequired = append(d.RestartRequired, "metrics_addr")
	}
	if !providersEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if oldS.Retry != newS.Retry || oldS.DialTimeout != newS.DialTimeout {
		d.RestartRequired = append(d.RestartRequired, "session.retry")
	}
	if old.Audio != new.Audio {
		d.RestartRequired = append(d.RestartRequired, "audio")
	}
	if old.Camera.FramePath != new.Camera.FramePath {
		d.RestartRequired = append(d.RestartRequired, "camera.frame_path")
	}
	if old.Tools != new.Tools {
		d.RestartRequired = append(d.RestartRequired, "tools")
	}

	return d
}

func providersEqual(a, b ProvidersConfig) bool {
	if !entryEqual(a.Live, b.Live) || !entryEqual(a.Search, b.Search) {
		return false
	}
	return slices.EqualFunc(a.Imaging, b.Imaging, entryEqual)
}

func entryEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	return maps.EqualFunc(a.Options, b.Options, func(x, y any) bool {
		return reflect.DeepEqual(x, y)
	})
}
