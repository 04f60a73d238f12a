// ABOUTME: Tests for configuration loading
// ABOUTME: Covers defaults, config files, environment overrides and validation
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maxmbed/sample-trig/pkg/audio/output"
	"github.com/maxmbed/sample-trig/pkg/audio/resample"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Device != output.DefaultConfig() {
		t.Errorf("expected default device config, got %+v", cfg.Device)
	}
	if cfg.MaxVoices != 6 {
		t.Errorf("expected 6 voices, got %d", cfg.MaxVoices)
	}
	if cfg.Keys != "qsdfgh" || cfg.ExitKey != 'x' {
		t.Errorf("unexpected key map %q / %q", cfg.Keys, cfg.ExitKey)
	}
	if cfg.IdleTimeout != 60*time.Second {
		t.Errorf("expected 60s idle timeout, got %v", cfg.IdleTimeout)
	}
	if cfg.ShutdownTimeout != time.Second {
		t.Errorf("expected 1s shutdown timeout, got %v", cfg.ShutdownTimeout)
	}
	if cfg.BounceEnabled {
		t.Error("expected bounce disabled by default")
	}
	if cfg.Quality != resample.Linear {
		t.Errorf("expected linear quality, got %v", cfg.Quality)
	}
	if cfg.Port != DefaultPort || !cfg.MDNS {
		t.Errorf("expected port %d with mDNS, got %d mdns=%v", DefaultPort, cfg.Port, cfg.MDNS)
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")
	if _, err := Load(path); err != nil {
		t.Errorf("expected missing file to fall back to defaults, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trig.yaml")
	data := `device:
  backend: "null"
  period: 512
bounce:
  enabled: true
  floor: 0.25
  quality: zoh
voice:
  idle_timeout: 5s
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Device.Backend != output.BackendNull {
		t.Errorf("expected null backend, got %q", cfg.Device.Backend)
	}
	if cfg.Device.PeriodFrames != 512 {
		t.Errorf("expected period 512, got %d", cfg.Device.PeriodFrames)
	}
	if !cfg.BounceEnabled || cfg.Bounce.Floor != 0.25 {
		t.Errorf("expected bounce with floor 0.25, got %v %+v", cfg.BounceEnabled, cfg.Bounce)
	}
	if cfg.Quality != resample.ZeroOrderHold {
		t.Errorf("expected zero-order hold, got %v", cfg.Quality)
	}
	if cfg.IdleTimeout != 5*time.Second {
		t.Errorf("expected 5s idle timeout, got %v", cfg.IdleTimeout)
	}

	vc := cfg.VoiceConfig(nil)
	if vc.Bounce == nil || vc.Bounce.Floor != 0.25 {
		t.Errorf("expected bounce params in voice config, got %+v", vc.Bounce)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SAMPLETRIG_DEVICE_BACKEND", "null")
	t.Setenv("SAMPLETRIG_REMOTE_PORT", "9100")
	t.Setenv("SAMPLETRIG_KEYS_EXIT", "z")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Device.Backend != output.BackendNull {
		t.Errorf("expected null backend from env, got %q", cfg.Device.Backend)
	}
	if cfg.Port != 9100 {
		t.Errorf("expected port 9100 from env, got %d", cfg.Port)
	}
	if cfg.ExitKey != 'z' {
		t.Errorf("expected exit key z, got %q", cfg.ExitKey)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"SAMPLETRIG_DEVICE_BACKEND": "jack"}},
		{"unknown quality", map[string]string{"SAMPLETRIG_BOUNCE_QUALITY": "sinc"}},
		{"long exit key", map[string]string{"SAMPLETRIG_KEYS_EXIT": "xx"}},
		{"too few keys", map[string]string{"SAMPLETRIG_KEYS_TRIGGER": "qs"}},
		{"zero voices", map[string]string{"SAMPLETRIG_VOICE_MAX": "0"}},
		{"bad bounce floor", map[string]string{
			"SAMPLETRIG_BOUNCE_ENABLED": "true",
			"SAMPLETRIG_BOUNCE_FLOOR":   "2.0",
		}},
		{"zero bounce floor", map[string]string{
			"SAMPLETRIG_BOUNCE_ENABLED": "true",
			"SAMPLETRIG_BOUNCE_FLOOR":   "0",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDispatchConfig(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	dc := cfg.DispatchConfig()
	if dc.Keys != cfg.Keys || dc.ExitKey != cfg.ExitKey {
		t.Errorf("dispatch config does not match: %+v", dc)
	}

	tests := []struct {
		name     string
		shutdown time.Duration
		want     time.Duration
	}{
		{"raised to device close bound", time.Millisecond, cfg.Device.CloseTimeout()},
		{"longer setting kept", time.Minute, time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg.ShutdownTimeout = tt.shutdown
			if got := cfg.DispatchConfig().ShutdownTimeout; got != tt.want {
				t.Errorf("ShutdownTimeout = %v, want %v", got, tt.want)
			}
		})
	}
}
