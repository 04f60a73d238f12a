// ABOUTME: Configuration loading for the trigger engine
// ABOUTME: Layers defaults, an optional config file and SAMPLETRIG_ environment variables
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maxmbed/sample-trig/internal/bounce"
	"github.com/maxmbed/sample-trig/internal/dispatch"
	"github.com/maxmbed/sample-trig/internal/voice"
	"github.com/maxmbed/sample-trig/pkg/audio/output"
	"github.com/maxmbed/sample-trig/pkg/audio/resample"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SAMPLETRIG_DEVICE_BACKEND
const EnvPrefix = "SAMPLETRIG"

// DefaultMaxVoices bounds the number of samples on the command line
const DefaultMaxVoices = 6

// DefaultPort is the remote trigger port
const DefaultPort = 8928

// Config is the resolved application configuration
type Config struct {
	Device output.Config

	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	QueueDepth      int
	MaxVoices       int

	Keys    string
	ExitKey rune

	BounceEnabled bool
	Bounce        bounce.Params
	Quality       resample.Quality

	Port int
	MDNS bool

	LogFile string
}

func setDefaults(v *viper.Viper) {
	dev := output.DefaultConfig()
	v.SetDefault("device.backend", dev.Backend)
	v.SetDefault("device.name", dev.Name)
	v.SetDefault("device.sample_rate", dev.SampleRate)
	v.SetDefault("device.period", dev.PeriodFrames)
	v.SetDefault("device.periods", dev.Periods)
	v.SetDefault("device.wait_timeout", dev.WaitTimeout)

	v.SetDefault("voice.idle_timeout", voice.DefaultIdleTimeout)
	v.SetDefault("voice.max", DefaultMaxVoices)
	v.SetDefault("voice.queue_depth", 10)
	v.SetDefault("shutdown_timeout", dispatch.DefaultShutdownTimeout)

	v.SetDefault("keys.trigger", dispatch.DefaultKeys)
	v.SetDefault("keys.exit", string(dispatch.DefaultExitKey))

	bp := bounce.DefaultParams()
	v.SetDefault("bounce.enabled", false)
	v.SetDefault("bounce.base", bp.BaseRatio)
	v.SetDefault("bounce.floor", bp.Floor)
	v.SetDefault("bounce.multiplier", bp.StepMultiplier)
	v.SetDefault("bounce.quality", "linear")

	v.SetDefault("remote.port", DefaultPort)
	v.SetDefault("remote.mdns", true)

	v.SetDefault("log.file", "sample-trig.log")
}

// Load reads configuration. path may be empty; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
				log.Printf("No config file at %s, using defaults", path)
			} else {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else {
			log.Printf("Loaded config from %s", v.ConfigFileUsed())
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	quality, err := resample.ParseQuality(v.GetString("bounce.quality"))
	if err != nil {
		return nil, err
	}

	exit := v.GetString("keys.exit")
	if utf8.RuneCountInString(exit) != 1 {
		return nil, fmt.Errorf("exit key must be a single character, got %q", exit)
	}
	exitKey, _ := utf8.DecodeRuneInString(exit)

	cfg := &Config{
		Device: output.Config{
			Backend:      v.GetString("device.backend"),
			Name:         v.GetString("device.name"),
			SampleRate:   v.GetInt("device.sample_rate"),
			PeriodFrames: v.GetInt("device.period"),
			Periods:      v.GetInt("device.periods"),
			WaitTimeout:  v.GetDuration("device.wait_timeout"),
		},
		IdleTimeout:     v.GetDuration("voice.idle_timeout"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		QueueDepth:      v.GetInt("voice.queue_depth"),
		MaxVoices:       v.GetInt("voice.max"),
		Keys:            v.GetString("keys.trigger"),
		ExitKey:         exitKey,
		BounceEnabled:   v.GetBool("bounce.enabled"),
		Bounce: bounce.Params{
			BaseRatio:      v.GetFloat64("bounce.base"),
			Floor:          v.GetFloat64("bounce.floor"),
			StepMultiplier: v.GetFloat64("bounce.multiplier"),
		},
		Quality: quality,
		Port:    v.GetInt("remote.port"),
		MDNS:    v.GetBool("remote.mdns"),
		LogFile: v.GetString("log.file"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for values the engine cannot run with
func (c *Config) Validate() error {
	if err := c.Device.Validate(); err != nil {
		return fmt.Errorf("device: %w", err)
	}
	if c.MaxVoices < 1 {
		return fmt.Errorf("voice.max must be at least 1, got %d", c.MaxVoices)
	}
	if n := utf8.RuneCountInString(c.Keys); n < c.MaxVoices {
		return fmt.Errorf("%d trigger keys for %d voices", n, c.MaxVoices)
	}
	if c.QueueDepth < 1 {
		return fmt.Errorf("voice.queue_depth must be at least 1, got %d", c.QueueDepth)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("voice.idle_timeout must be positive, got %v", c.IdleTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %v", c.ShutdownTimeout)
	}
	if c.BounceEnabled {
		if err := c.Bounce.Validate(); err != nil {
			return fmt.Errorf("bounce: %w", err)
		}
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid remote port %d", c.Port)
	}
	return nil
}

// DispatchConfig returns the dispatcher settings. A voice posts Exited
// only after its device closes, so the per-voice wait never drops below
// the device close bound.
func (c *Config) DispatchConfig() dispatch.Config {
	return dispatch.Config{
		Keys:            c.Keys,
		ExitKey:         c.ExitKey,
		ShutdownTimeout: max(c.ShutdownTimeout, c.Device.CloseTimeout()),
	}
}

// VoiceConfig returns the per-voice settings, opening devices through open
func (c *Config) VoiceConfig(open voice.OpenFunc) voice.Config {
	vc := voice.Config{
		IdleTimeout: c.IdleTimeout,
		OpenDevice:  open,
		Quality:     c.Quality,
	}
	if c.BounceEnabled {
		params := c.Bounce
		vc.Bounce = &params
	}
	return vc
}
