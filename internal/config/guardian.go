package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// GuardianConfig holds configuration for the consistency engine: sweep
// cadence, alert throttling, learning thresholds, and storage location.
type GuardianConfig struct {
	// DBPath is the SQLite file backing the key-value store
	// Default: ".mechanicum/guardian.db"
	DBPath string

	// LocalInterval is the cadence of the cheap check pass (top-priority
	// subset only)
	// Default: 30s, Range: 5s-10m
	LocalInterval time.Duration

	// ComprehensiveInterval is the cadence of the full sweep (all checks
	// plus validation and repair)
	// Must be >= LocalInterval
	// Default: 2m, Range: 30s-1h
	ComprehensiveInterval time.Duration

	// AlertCooldown is the minimum gap between two user-visible alerts
	// of the same category
	// Default: 30m, Range: 1m-24h
	AlertCooldown time.Duration

	// EscalationThreshold is the occurrence count at which a recurring
	// issue becomes an escalation candidate
	// Default: 3, Range: 1-100
	EscalationThreshold int

	// RepairLogCapacity bounds the persisted repair history ring
	// Default: 100, Range: 10-10000
	RepairLogCapacity int

	// EventFeedCapacity bounds the persisted structured event feed
	// Default: 200, Range: 10-10000
	EventFeedCapacity int

	// SubsetLimit is the maximum number of checks the cheap pass runs
	// Default: 5, Range: 1-50
	SubsetLimit int

	// SubsetMinPriority is the lowest priority the cheap pass considers
	// Options: "low", "medium", "high", "critical"
	// Default: "high"
	SubsetMinPriority string

	// AutoRepair controls whether sweep findings are repaired in place.
	// When false, findings are queued as suggestions for manual approval
	// Default: true
	AutoRepair bool

	// ReviewModel is the model used for optional AI sweep review.
	// Review runs only when an API key is present and review is requested
	// Default: "claude-sonnet-4-5"
	ReviewModel string
}

// DefaultGuardianConfig returns the default engine configuration
//
// The defaults mirror the engine's operating assumptions:
// - frequent cheap passes (30s) so obvious corruption is caught quickly
// - comprehensive sweeps every 2 minutes for the full invariant set
// - a 30 minute alert cooldown so one bad sweep cannot storm the user
// - escalation interest after 3 occurrences of the same issue
func DefaultGuardianConfig() GuardianConfig {
	return GuardianConfig{
		DBPath:                ".mechanicum/guardian.db",
		LocalInterval:         30 * time.Second,
		ComprehensiveInterval: 2 * time.Minute,
		AlertCooldown:         30 * time.Minute,
		EscalationThreshold:   3,
		RepairLogCapacity:     100,
		EventFeedCapacity:     200,
		SubsetLimit:           5,
		SubsetMinPriority:     "high",
		AutoRepair:            true,
		ReviewModel:           "claude-sonnet-4-5",
	}
}

// Validate checks if the configuration has valid values
func (c GuardianConfig) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}

	if c.LocalInterval < 5*time.Second || c.LocalInterval > 10*time.Minute {
		return fmt.Errorf("local_interval must be between 5s and 10m (got %s)", c.LocalInterval)
	}

	if c.ComprehensiveInterval < 30*time.Second || c.ComprehensiveInterval > time.Hour {
		return fmt.Errorf("comprehensive_interval must be between 30s and 1h (got %s)",
			c.ComprehensiveInterval)
	}
	if c.ComprehensiveInterval < c.LocalInterval {
		return fmt.Errorf("comprehensive_interval (%s) must be >= local_interval (%s)",
			c.ComprehensiveInterval, c.LocalInterval)
	}

	if c.AlertCooldown < time.Minute || c.AlertCooldown > 24*time.Hour {
		return fmt.Errorf("alert_cooldown must be between 1m and 24h (got %s)", c.AlertCooldown)
	}

	if c.EscalationThreshold < 1 || c.EscalationThreshold > 100 {
		return fmt.Errorf("escalation_threshold must be between 1 and 100 (got %d)",
			c.EscalationThreshold)
	}

	if c.RepairLogCapacity < 10 || c.RepairLogCapacity > 10000 {
		return fmt.Errorf("repair_log_capacity must be between 10 and 10000 (got %d)",
			c.RepairLogCapacity)
	}

	if c.EventFeedCapacity < 10 || c.EventFeedCapacity > 10000 {
		return fmt.Errorf("event_feed_capacity must be between 10 and 10000 (got %d)",
			c.EventFeedCapacity)
	}

	if c.SubsetLimit < 1 || c.SubsetLimit > 50 {
		return fmt.Errorf("subset_limit must be between 1 and 50 (got %d)", c.SubsetLimit)
	}

	switch c.SubsetMinPriority {
	case "low", "medium", "high", "critical":
	default:
		return fmt.Errorf("subset_min_priority must be low, medium, high, or critical (got %q)",
			c.SubsetMinPriority)
	}

	if c.ReviewModel == "" {
		return fmt.Errorf("review_model is required")
	}

	return nil
}

// String returns a human-readable representation of the config
func (c GuardianConfig) String() string {
	return fmt.Sprintf(
		"GuardianConfig{DB: %s, Local: %s, Comprehensive: %s, Cooldown: %s, "+
			"Escalation: %d, LogCap: %d, FeedCap: %d, Subset: %d@%s, AutoRepair: %t}",
		c.DBPath, c.LocalInterval, c.ComprehensiveInterval, c.AlertCooldown,
		c.EscalationThreshold, c.RepairLogCapacity, c.EventFeedCapacity,
		c.SubsetLimit, c.SubsetMinPriority, c.AutoRepair,
	)
}

// GuardianConfigFromEnv creates a GuardianConfig from environment
// variables, falling back to defaults
//
// Environment variables:
//   - MECH_DB_PATH: SQLite file for the key-value store (default: .mechanicum/guardian.db)
//   - MECH_LOCAL_INTERVAL: cheap pass cadence, e.g. "30s" (default: 30s)
//   - MECH_COMPREHENSIVE_INTERVAL: full sweep cadence, e.g. "2m" (default: 2m)
//   - MECH_ALERT_COOLDOWN: minimum gap between same-category alerts (default: 30m)
//   - MECH_ESCALATION_THRESHOLD: occurrences before escalation interest (default: 3)
//   - MECH_REPAIR_LOG_CAPACITY: repair history ring size (default: 100)
//   - MECH_EVENT_FEED_CAPACITY: structured event feed size (default: 200)
//   - MECH_SUBSET_LIMIT: max checks in the cheap pass (default: 5)
//   - MECH_SUBSET_MIN_PRIORITY: lowest priority in the cheap pass (default: high)
//   - MECH_AUTO_REPAIR: repair in place vs queue suggestions (default: true)
//   - MECH_REVIEW_MODEL: model for optional AI sweep review (default: claude-sonnet-4-5)
//
// Returns an error if any environment variable has an invalid value.
func GuardianConfigFromEnv() (GuardianConfig, error) {
	return OverlayEnv(DefaultGuardianConfig())
}

// OverlayEnv applies the MECH_* environment variables on top of base.
// Unset variables keep the base value. The CLI overlays env after the
// config file so that environment wins over file, and flags over both.
func OverlayEnv(base GuardianConfig) (GuardianConfig, error) {
	cfg := base

	if err := parseEnvString("MECH_DB_PATH", &cfg.DBPath); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("MECH_LOCAL_INTERVAL", &cfg.LocalInterval); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("MECH_COMPREHENSIVE_INTERVAL", &cfg.ComprehensiveInterval); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("MECH_ALERT_COOLDOWN", &cfg.AlertCooldown); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("MECH_ESCALATION_THRESHOLD", &cfg.EscalationThreshold); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("MECH_REPAIR_LOG_CAPACITY", &cfg.RepairLogCapacity); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("MECH_EVENT_FEED_CAPACITY", &cfg.EventFeedCapacity); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("MECH_SUBSET_LIMIT", &cfg.SubsetLimit); err != nil {
		return cfg, err
	}
	if err := parseEnvString("MECH_SUBSET_MIN_PRIORITY", &cfg.SubsetMinPriority); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("MECH_AUTO_REPAIR", &cfg.AutoRepair); err != nil {
		return cfg, err
	}
	if err := parseEnvString("MECH_REVIEW_MODEL", &cfg.ReviewModel); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid guardian configuration from environment: %w", err)
	}

	return cfg, nil
}

// fileConfig is the YAML-facing shape of GuardianConfig. Durations are
// strings ("30s", "2m") converted on load.
type fileConfig struct {
	DBPath                string `yaml:"db_path,omitempty"`
	LocalInterval         string `yaml:"local_interval,omitempty"`
	ComprehensiveInterval string `yaml:"comprehensive_interval,omitempty"`
	AlertCooldown         string `yaml:"alert_cooldown,omitempty"`
	EscalationThreshold   *int   `yaml:"escalation_threshold,omitempty"`
	RepairLogCapacity     *int   `yaml:"repair_log_capacity,omitempty"`
	EventFeedCapacity     *int   `yaml:"event_feed_capacity,omitempty"`
	SubsetLimit           *int   `yaml:"subset_limit,omitempty"`
	SubsetMinPriority     string `yaml:"subset_min_priority,omitempty"`
	AutoRepair            *bool  `yaml:"auto_repair,omitempty"`
	ReviewModel           string `yaml:"review_model,omitempty"`
}

// LoadGuardianFile overlays a YAML config file onto base. Absent fields
// keep the base value, so a file can set just the knobs it cares about.
func LoadGuardianFile(path string, base GuardianConfig) (GuardianConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return base, fmt.Errorf("parsing YAML: %w", err)
	}

	cfg := base
	if fc.DBPath != "" {
		cfg.DBPath = fc.DBPath
	}
	if fc.LocalInterval != "" {
		d, err := time.ParseDuration(fc.LocalInterval)
		if err != nil {
			return base, fmt.Errorf("invalid local_interval %q: %w", fc.LocalInterval, err)
		}
		cfg.LocalInterval = d
	}
	if fc.ComprehensiveInterval != "" {
		d, err := time.ParseDuration(fc.ComprehensiveInterval)
		if err != nil {
			return base, fmt.Errorf("invalid comprehensive_interval %q: %w", fc.ComprehensiveInterval, err)
		}
		cfg.ComprehensiveInterval = d
	}
	if fc.AlertCooldown != "" {
		d, err := time.ParseDuration(fc.AlertCooldown)
		if err != nil {
			return base, fmt.Errorf("invalid alert_cooldown %q: %w", fc.AlertCooldown, err)
		}
		cfg.AlertCooldown = d
	}
	if fc.EscalationThreshold != nil {
		cfg.EscalationThreshold = *fc.EscalationThreshold
	}
	if fc.RepairLogCapacity != nil {
		cfg.RepairLogCapacity = *fc.RepairLogCapacity
	}
	if fc.EventFeedCapacity != nil {
		cfg.EventFeedCapacity = *fc.EventFeedCapacity
	}
	if fc.SubsetLimit != nil {
		cfg.SubsetLimit = *fc.SubsetLimit
	}
	if fc.SubsetMinPriority != "" {
		cfg.SubsetMinPriority = fc.SubsetMinPriority
	}
	if fc.AutoRepair != nil {
		cfg.AutoRepair = *fc.AutoRepair
	}
	if fc.ReviewModel != "" {
		cfg.ReviewModel = fc.ReviewModel
	}

	if err := cfg.Validate(); err != nil {
		return base, fmt.Errorf("invalid guardian configuration from %s: %w", path, err)
	}

	return cfg, nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	*dest = value
	return nil
}

// parseEnvDuration parses a time.Duration from an environment variable
func parseEnvDuration(key string, dest *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
