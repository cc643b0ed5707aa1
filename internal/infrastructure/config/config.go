package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Doorguard.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Access    AccessConfig    `yaml:"access"`
	Door      DoorConfig      `yaml:"door"`
	Voice     VoiceConfig     `yaml:"voice"`
	Policy    PolicyConfig    `yaml:"policy"`
}

// SiteConfig identifies the door this controller guards.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	// PanelDir serves the kiosk display from disk instead of the embedded
	// copy. Empty uses the embedded copy.
	PanelDir string `yaml:"panel_dir"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains operator API security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// AccessConfig holds the authentication policy timings and thresholds.
type AccessConfig struct {
	// MaxAttempts is the number of failed attempts on one sequential step
	// before the whole session restarts from the face step.
	MaxAttempts int `yaml:"max_attempts"`

	// FaceMatchThreshold is the number of consecutive recognised frames
	// required before the face factor counts as verified.
	FaceMatchThreshold int `yaml:"face_match_threshold"`

	// SensorErrorTolerance is how many consecutive sensor read or quality
	// errors are absorbed before one is counted as a failed attempt.
	SensorErrorTolerance int `yaml:"sensor_error_tolerance"`

	FaceSettleDelay    time.Duration `yaml:"face_settle_delay"`
	FramePollInterval  time.Duration `yaml:"frame_poll_interval"`
	SensorPollInterval time.Duration `yaml:"sensor_poll_interval"`
	FingerprintTimeout time.Duration `yaml:"fingerprint_timeout"`
	CardTimeout        time.Duration `yaml:"card_timeout"`
	PasscodeTimeout    time.Duration `yaml:"passcode_timeout"`
	RetryDelay         time.Duration `yaml:"retry_delay"`
	RestartDelay       time.Duration `yaml:"restart_delay"`

	// AdminCardID is the hex card identifier that triggers the admin override.
	AdminCardID string `yaml:"admin_card_id"`

	AdminPromptTimeout time.Duration `yaml:"admin_prompt_timeout"`
	AdminFailureDelay  time.Duration `yaml:"admin_failure_delay"`

	// ExitConfirmWindow is how long the exit hotkey stays armed waiting for
	// the confirming second press.
	ExitConfirmWindow time.Duration `yaml:"exit_confirm_window"`
}

// DoorConfig controls the lock relay sequencing.
type DoorConfig struct {
	UnlockDuration time.Duration `yaml:"unlock_duration"`
	// SessionRestartDelay is the pause after relock before a new session begins.
	SessionRestartDelay time.Duration `yaml:"session_restart_delay"`
}

// VoiceConfig controls the voice gate.
type VoiceConfig struct {
	Enabled         bool          `yaml:"enabled"`
	QueueCapacity   int           `yaml:"queue_capacity"`
	DuplicateWindow time.Duration `yaml:"duplicate_window"`

	// Cooldowns overrides the built-in per-key cooldown table.
	Cooldowns map[string]time.Duration `yaml:"cooldowns"`

	// Messages overrides the built-in message catalogue. An empty string
	// silences a key.
	Messages map[string]string `yaml:"messages"`
}

// PolicyConfig seeds the policy store on first boot.
type PolicyConfig struct {
	Mode          string   `yaml:"mode"`
	Passcode      string   `yaml:"passcode"`
	Cards         []string `yaml:"cards"`
	Fingerprints  []int    `yaml:"fingerprints"`
	AdminPasscode string   `yaml:"admin_passcode"`
	HistoryLimit  int      `yaml:"history_limit"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DOORGUARD_SECTION_KEY
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with the stock timings of the access policy.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "door-001",
			Name: "Front Door",
		},
		Database: DatabaseConfig{
			Path:        "./data/doorguard.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "doorguard-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
		},
		Access: AccessConfig{
			MaxAttempts:          5,
			FaceMatchThreshold:   5,
			SensorErrorTolerance: 3,
			FaceSettleDelay:      1500 * time.Millisecond,
			FramePollInterval:    100 * time.Millisecond,
			SensorPollInterval:   200 * time.Millisecond,
			FingerprintTimeout:   10 * time.Second,
			CardTimeout:          8 * time.Second,
			PasscodeTimeout:      30 * time.Second,
			RetryDelay:           2 * time.Second,
			RestartDelay:         3500 * time.Millisecond,
			AdminPromptTimeout:   30 * time.Second,
			AdminFailureDelay:    3 * time.Second,
			ExitConfirmWindow:    5 * time.Second,
		},
		Door: DoorConfig{
			UnlockDuration:      3 * time.Second,
			SessionRestartDelay: 3 * time.Second,
		},
		Voice: VoiceConfig{
			Enabled:         true,
			QueueCapacity:   3,
			DuplicateWindow: 3 * time.Second,
		},
		Policy: PolicyConfig{
			Mode:         "sequential",
			HistoryLimit: 50,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DOORGUARD_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOORGUARD_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("DOORGUARD_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DOORGUARD_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DOORGUARD_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("DOORGUARD_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("DOORGUARD_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("DOORGUARD_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	// Secrets for the lock itself never need to live in the YAML file.
	if v := os.Getenv("DOORGUARD_PASSCODE"); v != "" {
		cfg.Policy.Passcode = v
	}
	if v := os.Getenv("DOORGUARD_ADMIN_PASSCODE"); v != "" {
		cfg.Policy.AdminPasscode = v
	}
	if v := os.Getenv("DOORGUARD_ADMIN_CARD_ID"); v != "" {
		cfg.Access.AdminCardID = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// The operator API can switch the door into fast-access mode, so a weak
	// token secret is as bad as a weak passcode.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set DOORGUARD_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	errs = append(errs, c.Access.validate()...)

	if c.Door.UnlockDuration <= 0 {
		errs = append(errs, "door.unlock_duration must be positive")
	}
	if c.Door.SessionRestartDelay < 0 {
		errs = append(errs, "door.session_restart_delay cannot be negative")
	}

	if c.Voice.QueueCapacity < 1 {
		errs = append(errs, "voice.queue_capacity must be at least 1")
	}

	switch strings.ToLower(c.Policy.Mode) {
	case "sequential", "any":
	default:
		errs = append(errs, "policy.mode must be \"sequential\" or \"any\"")
	}
	if c.Policy.HistoryLimit < 1 {
		errs = append(errs, "policy.history_limit must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (a AccessConfig) validate() []string {
	var errs []string
	if a.MaxAttempts < 1 {
		errs = append(errs, "access.max_attempts must be at least 1")
	}
	if a.FaceMatchThreshold < 1 {
		errs = append(errs, "access.face_match_threshold must be at least 1")
	}
	if a.SensorErrorTolerance < 0 {
		errs = append(errs, "access.sensor_error_tolerance cannot be negative")
	}
	positive := map[string]time.Duration{
		"access.frame_poll_interval":  a.FramePollInterval,
		"access.sensor_poll_interval": a.SensorPollInterval,
		"access.fingerprint_timeout":  a.FingerprintTimeout,
		"access.card_timeout":         a.CardTimeout,
		"access.passcode_timeout":     a.PasscodeTimeout,
		"access.admin_prompt_timeout": a.AdminPromptTimeout,
		"access.exit_confirm_window":  a.ExitConfirmWindow,
	}
	for name, d := range positive {
		if d <= 0 {
			errs = append(errs, name+" must be positive")
		}
	}
	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
