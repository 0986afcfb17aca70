package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"propcore-go/errcode"
	"propcore-go/types"
)

// Config is the top-level application configuration.
type Config struct {
	Power PowerConfig `yaml:"power"`
	Log   LogConfig   `yaml:"log"`
}

// PowerConfig configures the power coordinator.
type PowerConfig struct {
	// Domain names (per types.DomainTable) powered at startup and after wake.
	StartupDomains []string `yaml:"startup_domains"`
	// Looper period for the evaluation tick, in milliseconds.
	TickMs uint32 `yaml:"tick_ms"`
	// Per-domain default timeout overrides, in milliseconds, keyed by name.
	Timeouts map[string]uint32 `yaml:"timeouts"`
	Wake     WakeConfig        `yaml:"wake"`
}

// WakeConfig selects the armed wake sources for deep sleep.
type WakeConfig struct {
	Button bool `yaml:"button"`
	Serial bool `yaml:"serial"`
	// RTC charger poll: armed only when ChargerLimitMA is non-zero.
	RTCPollMs      uint32 `yaml:"rtc_poll_ms"`
	RTCDebounce    uint8  `yaml:"rtc_debounce"`
	ChargerLimitMA uint32 `yaml:"charger_limit_ma"`
	// Halt entry: "wfi" (default) or "wfe".
	Halt string `yaml:"halt"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Colors bool   `yaml:"colors"`
}

// Default returns the built-in configuration, matching the hardware defaults.
func Default() Config {
	return Config{
		Power: PowerConfig{
			StartupDomains: []string{"CPU"},
			TickMs:         10,
			Wake: WakeConfig{
				Button:      true,
				Serial:      true,
				RTCPollMs:   1000,
				RTCDebounce: 3,
				Halt:        "wfi",
			},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads and validates a YAML config file. Missing fields keep their
// defaults; validation failures are configuration errors and abort startup.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks domain names and wake settings.
func (c *Config) Validate() error {
	for _, name := range c.Power.StartupDomains {
		if _, ok := DomainByName(name); !ok {
			return &errcode.E{C: errcode.UnknownDomain, Op: "config", Msg: "startup domain " + name}
		}
	}
	for name := range c.Power.Timeouts {
		if _, ok := DomainByName(name); !ok {
			return &errcode.E{C: errcode.UnknownDomain, Op: "config", Msg: "timeout for " + name}
		}
	}
	switch strings.ToLower(c.Power.Wake.Halt) {
	case "", "wfi", "wfe":
	default:
		return &errcode.E{C: errcode.InvalidArgs, Op: "config", Msg: "halt must be wfi or wfe"}
	}
	if c.Power.TickMs == 0 {
		return &errcode.E{C: errcode.InvalidArgs, Op: "config", Msg: "tick_ms must be > 0"}
	}
	return nil
}

// StartupSet resolves the configured startup domain names into a set.
func (c *Config) StartupSet() types.DomainSet {
	var set types.DomainSet
	for _, name := range c.Power.StartupDomains {
		if f, ok := DomainByName(name); ok {
			set |= f
		}
	}
	return set
}

// HaltMode resolves the configured halt entry instruction.
func (c *Config) HaltMode() types.HaltMode {
	if strings.EqualFold(c.Power.Wake.Halt, "wfe") {
		return types.HaltWFE
	}
	return types.HaltWFI
}

// DomainByName maps a display name (case-insensitive) to its flag.
func DomainByName(name string) (types.DomainFlag, bool) {
	for _, e := range types.DomainTable {
		if strings.EqualFold(e.Name, name) {
			return e.Bit, true
		}
	}
	return types.DomainNone, false
}

// GetLevel parses the configured log level, defaulting to info.
func (l LogConfig) GetLevel() string {
	if l.Level == "" {
		return "info"
	}
	return strings.ToLower(l.Level)
}
