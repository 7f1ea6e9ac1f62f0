package config_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/flux/internal/config"
)

func mustLoad(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	return cfg
}

func TestCompare(t *testing.T) {
	t.Parallel()

	base := mustLoad(t, fullYAML)

	tests := []struct {
		name        string
		mutate      func(*config.Config)
		wantLevel   bool
		wantPipe    bool
		wantEnhance bool
		wantRestart []string
	}{
		{name: "identical", mutate: func(*config.Config) {}},
		{
			name:      "log level",
			mutate:    func(c *config.Config) { c.Server.LogLevel = config.LogWarn },
			wantLevel: true,
		},
		{
			name: "dictionary",
			mutate: func(c *config.Config) {
				c.Pipeline.Dictionary = append(c.Pipeline.Dictionary, config.DictionaryEntry{From: "k8s", To: "Kubernetes"})
			},
			wantPipe: true,
		},
		{
			name:        "app style",
			mutate:      func(c *config.Config) { c.Enhancement.AppStyles = map[string]string{"mail": "formal"} },
			wantEnhance: true,
		},
		{
			name: "restart sections",
			mutate: func(c *config.Config) {
				c.Flows[0].Hotkey = "f13"
				c.Capture.Watchdog *= 2
				c.Providers.STT.Model = "large-v3"
			},
			wantRestart: []string{"providers", "flows", "capture"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			next := mustLoad(t, fullYAML)
			tc.mutate(next)

			d := config.Compare(base, next)
			if d.LogLevelChanged != tc.wantLevel || d.PipelineChanged != tc.wantPipe || d.EnhancementChanged != tc.wantEnhance {
				t.Errorf("diff = %+v", d)
			}
			if !slices.Equal(d.RestartRequired, tc.wantRestart) {
				t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, tc.wantRestart)
			}
			if want := tc.name == "identical"; d.Empty() != want {
				t.Errorf("Empty() = %v, want %v", d.Empty(), want)
			}
		})
	}
}
