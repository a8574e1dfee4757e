package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds the entire configuration for the RivalScan server.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	Agents    AgentsConfig    `yaml:"agents" mapstructure:"agents"`
	Context   ContextConfig   `yaml:"context" mapstructure:"context"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	API       APIConfig       `yaml:"api" mapstructure:"api"`
	Cleanup   CleanupConfig   `yaml:"cleanup" mapstructure:"cleanup"`
	Orchestra OrchestraConfig `yaml:"orchestration" mapstructure:"orchestration"`
}

// ServerConfig holds host/port bindings and the deployment mode.
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
	// Mode is "development" or "production". In production a missing Gemini
	// API key is fatal at startup instead of being deferred to first call.
	Mode string `yaml:"mode" mapstructure:"mode"`
}

// GeminiConfig holds generation engine credentials and tuning.
type GeminiConfig struct {
	APIKey            string        `yaml:"api_key" mapstructure:"api_key"`
	Model             string        `yaml:"model" mapstructure:"model"`
	GenerationTimeout time.Duration `yaml:"generation_timeout" mapstructure:"generation_timeout"`
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries"`
}

// AgentsConfig holds per-agent base URLs and the invocation timeout.
type AgentsConfig struct {
	BaseURLs map[string]string `yaml:"base_urls" mapstructure:"base_urls"`
	Timeout  time.Duration     `yaml:"timeout" mapstructure:"timeout"`
}

// ContextConfig holds context store defaults.
type ContextConfig struct {
	OutputTTLSeconds    int     `yaml:"output_ttl_seconds" mapstructure:"output_ttl_seconds"`
	FactExpiryHours     int     `yaml:"fact_expiry_hours" mapstructure:"fact_expiry_hours"`
	SignalHoursBack     int     `yaml:"signal_hours_back" mapstructure:"signal_hours_back"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
}

// StorageConfig holds database paths.
type StorageConfig struct {
	ContextDBPath string `yaml:"context_db_path" mapstructure:"context_db_path"`
	ManagedDBPath string `yaml:"managed_db_path" mapstructure:"managed_db_path"`
}

// APIConfig holds API-level settings.
type APIConfig struct {
	CORS CORSConfig `yaml:"cors" mapstructure:"cors"`
}

// CORSConfig holds CORS origin policy.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials" mapstructure:"allow_credentials"`
}

// CleanupConfig controls the periodic expired-data sweep.
type CleanupConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// OrchestraConfig holds orchestration driver tuning.
type OrchestraConfig struct {
	BackgroundQueueSize int `yaml:"background_queue_size" mapstructure:"background_queue_size"`
	BackgroundWorkers   int `yaml:"background_workers" mapstructure:"background_workers"`
}

// DefaultAgentBaseURLs mirrors the default downstream agent fleet. agent_sc is
// the primary product-launch agent, agent_pl its fallback.
func DefaultAgentBaseURLs() map[string]string {
	return map[string]string{
		"agent_ac": "http://localhost:9001/agent_ac",
		"agent_at": "http://localhost:9001/agent_at",
		"agent_pc": "http://localhost:9001/agent_pc",
		"agent_sc": "http://localhost:9001/agent_sc",
		"agent_pl": "http://localhost:9001/agent_pl",
	}
}

// Load reads configuration through viper: the given YAML file (when empty,
// rivalscan.yaml is searched for in ./config and the working directory) plus
// RIVALSCAN_-prefixed environment variables, followed by defaults and
// validation. Duration values use Go duration syntax ("45s", "2m").
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RIVALSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("rivalscan")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// No config file: environment variables and defaults apply.
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(v, &cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindEnvKeys pins the short environment names the service documents to their
// config keys so they survive into Unmarshal.
func bindEnvKeys(v *viper.Viper) {
	v.BindEnv("server.host", "RIVALSCAN_HOST")
	v.BindEnv("server.port", "RIVALSCAN_PORT")
	v.BindEnv("server.mode", "RIVALSCAN_MODE")
	v.BindEnv("gemini.api_key", "RIVALSCAN_GEMINI_API_KEY", "GOOGLE_API_KEY")
	v.BindEnv("storage.context_db_path", "RIVALSCAN_CONTEXT_DB")
	v.BindEnv("storage.managed_db_path", "RIVALSCAN_MANAGED_DB")
	v.BindEnv("agents.timeout", "RIVALSCAN_AGENT_TIMEOUT")
	v.BindEnv("context.output_ttl_seconds", "RIVALSCAN_OUTPUT_TTL_SECONDS")
	v.BindEnv("context.fact_expiry_hours", "RIVALSCAN_FACT_EXPIRY_HOURS")
	v.BindEnv("context.signal_hours_back", "RIVALSCAN_SIGNAL_HOURS_BACK")
	v.BindEnv("context.confidence_threshold", "RIVALSCAN_CONFIDENCE_THRESHOLD")

	// Per-agent URL overrides, e.g. RIVALSCAN_AGENT_AC_URL.
	for name := range DefaultAgentBaseURLs() {
		v.BindEnv("agents.base_urls."+name, "RIVALSCAN_"+strings.ToUpper(name)+"_URL")
	}
}

func applyDefaults(v *viper.Viper, cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "development"
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-1.5-pro"
	}
	if cfg.Gemini.GenerationTimeout <= 0 {
		cfg.Gemini.GenerationTimeout = 60 * time.Second
	}
	if cfg.Gemini.MaxRetries <= 0 {
		cfg.Gemini.MaxRetries = 3
	}
	if cfg.Agents.Timeout <= 0 {
		cfg.Agents.Timeout = 30 * time.Second
	}
	// Fill the fleet in around any per-agent overrides.
	if cfg.Agents.BaseURLs == nil {
		cfg.Agents.BaseURLs = map[string]string{}
	}
	for name, url := range DefaultAgentBaseURLs() {
		if cfg.Agents.BaseURLs[name] == "" {
			cfg.Agents.BaseURLs[name] = url
		}
	}
	if cfg.Context.OutputTTLSeconds <= 0 {
		cfg.Context.OutputTTLSeconds = 3600
	}
	if cfg.Context.FactExpiryHours <= 0 {
		cfg.Context.FactExpiryHours = 720
	}
	if cfg.Context.SignalHoursBack <= 0 {
		cfg.Context.SignalHoursBack = 168
	}
	if cfg.Context.ConfidenceThreshold <= 0 {
		cfg.Context.ConfidenceThreshold = 0.5
	}
	if cfg.Storage.ContextDBPath == "" {
		cfg.Storage.ContextDBPath = "orchestrator_context.db"
	}
	if cfg.Storage.ManagedDBPath == "" {
		cfg.Storage.ManagedDBPath = "managed_storage.db"
	}
	if len(cfg.API.CORS.AllowedOrigins) == 0 {
		cfg.API.CORS.AllowedOrigins = []string{"*"}
	}
	// Cleanup runs unless explicitly disabled.
	if !v.IsSet("cleanup.enabled") {
		cfg.Cleanup.Enabled = true
	}
	if cfg.Cleanup.Interval <= 0 {
		cfg.Cleanup.Interval = time.Hour
	}
	if cfg.Orchestra.BackgroundQueueSize <= 0 {
		cfg.Orchestra.BackgroundQueueSize = 256
	}
	if cfg.Orchestra.BackgroundWorkers <= 0 {
		cfg.Orchestra.BackgroundWorkers = 2
	}
}

// Validate enforces deployment-mode invariants. Missing credentials are only
// fatal in production; development defers the failure to first generation call.
func (cfg *Config) Validate() error {
	switch cfg.Server.Mode {
	case "development", "production":
	default:
		return fmt.Errorf("invalid server mode %q (expected development or production)", cfg.Server.Mode)
	}
	if cfg.Server.Mode == "production" && cfg.Gemini.APIKey == "" {
		return fmt.Errorf("gemini api key is required in production mode")
	}
	return nil
}

// Production reports whether the server runs in production deployment mode.
func (cfg *Config) Production() bool { return cfg.Server.Mode == "production" }

// Dump renders the resolved configuration as YAML with credentials masked.
func (cfg *Config) Dump() ([]byte, error) {
	masked := *cfg
	if masked.Gemini.APIKey != "" {
		masked.Gemini.APIKey = "********"
	}
	out, err := yaml.Marshal(&masked)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
