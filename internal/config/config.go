package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"GroupWatch/internal/domain"
)

const (
	configPathEnv     = "GROUPWATCH_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	databaseDriverEnv = "DATABASE_DRIVER"
	openAIKeyEnv      = "OPENAI_API_KEY"
	openAIModelEnv    = "OPENAI_MODEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	metricsAddrEnv    = "METRICS_ADDR"
)

// Pool execution modes, selected via monitor.mode.
const (
	ModeSequential = "sequential"
	ModeEphemeral  = "ephemeral"
	ModePersistent = "persistent"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig         `yaml:"logging"`
	Database      DatabaseConfig        `yaml:"database"`
	Monitor       MonitorConfig         `yaml:"monitor"`
	LLM           LLMConfig             `yaml:"llm"`
	Notifications NotificationConfig    `yaml:"notifications"`
	Metrics       MetricsConfig         `yaml:"metrics"`
	Sources       []domain.SourceConfig `yaml:"sources"`
}

// LoggingConfig selects the level and optional rotated log file.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	FilePath   string `yaml:"filePath"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
}

// DatabaseConfig describes the post store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // postgres or sqlite
	DSN    string `yaml:"dsn"`
}

// MonitorConfig tunes the orchestrator and the cycle loop.
type MonitorConfig struct {
	Mode            string   `yaml:"mode"`
	MaxWorkers      int      `yaml:"maxWorkers"`
	CheckInterval   Duration `yaml:"checkInterval"`
	ExtractTimeout  Duration `yaml:"extractTimeout"`
	RetryAttempts   int      `yaml:"retryAttempts"`
	RetryBackoff    Duration `yaml:"retryBackoff"`
	StaggerInterval Duration `yaml:"staggerInterval"`
	MaxPostAge      Duration `yaml:"maxPostAge"`
}

// LLMConfig defines how to contact the OpenAI-compatible classification API.
type LLMConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// NotificationConfig encapsulates outbound channels and the categories
// that cross the notification threshold.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Watch    []string       `yaml:"watch"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Load reads .env, YAML configuration (if present), and applies environment
// overrides on top of the defaults.
func Load() Config {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	return cfg
}

// EnabledSources filters out disabled entries, preserving order.
func (c Config) EnabledSources() []domain.SourceConfig {
	var out []domain.SourceConfig
	for _, src := range c.Sources {
		if src.Enabled {
			out = append(out, src)
		}
	}
	return out
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(openAIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(openAIModelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv(metricsAddrEnv); v != "" {
		c.Metrics.Addr = v
		c.Metrics.Enabled = true
	}
}

func (c *Config) normalize() {
	switch c.Monitor.Mode {
	case ModeSequential, ModeEphemeral, ModePersistent:
	default:
		log.Printf("config: unknown monitor mode %q, reverting to %s", c.Monitor.Mode, ModeSequential)
		c.Monitor.Mode = ModeSequential
	}
	if c.Monitor.MaxWorkers <= 0 {
		c.Monitor.MaxWorkers = 1
	}
	if c.Monitor.RetryAttempts <= 0 {
		c.Monitor.RetryAttempts = 3
	}
	for i := range c.Sources {
		if c.Sources[i].Depth <= 0 {
			c.Sources[i].Depth = 1
		}
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.FilePath != "" {
		base.Logging.FilePath = override.Logging.FilePath
	}
	if override.Logging.MaxSizeMB > 0 {
		base.Logging.MaxSizeMB = override.Logging.MaxSizeMB
	}
	if override.Logging.MaxBackups > 0 {
		base.Logging.MaxBackups = override.Logging.MaxBackups
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Monitor.Mode != "" {
		base.Monitor.Mode = override.Monitor.Mode
	}
	if override.Monitor.MaxWorkers > 0 {
		base.Monitor.MaxWorkers = override.Monitor.MaxWorkers
	}
	if override.Monitor.CheckInterval > 0 {
		base.Monitor.CheckInterval = override.Monitor.CheckInterval
	}
	if override.Monitor.ExtractTimeout > 0 {
		base.Monitor.ExtractTimeout = override.Monitor.ExtractTimeout
	}
	if override.Monitor.RetryAttempts > 0 {
		base.Monitor.RetryAttempts = override.Monitor.RetryAttempts
	}
	if override.Monitor.RetryBackoff > 0 {
		base.Monitor.RetryBackoff = override.Monitor.RetryBackoff
	}
	if override.Monitor.StaggerInterval > 0 {
		base.Monitor.StaggerInterval = override.Monitor.StaggerInterval
	}
	if override.Monitor.MaxPostAge > 0 {
		base.Monitor.MaxPostAge = override.Monitor.MaxPostAge
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if len(override.Notifications.Watch) > 0 {
		base.Notifications.Watch = override.Notifications.Watch
	}

	if override.Metrics.Addr != "" {
		base.Metrics = override.Metrics
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "groupwatch.db",
		},
		Monitor: MonitorConfig{
			Mode:            ModeSequential,
			MaxWorkers:      3,
			CheckInterval:   Duration(5 * time.Minute),
			ExtractTimeout:  Duration(90 * time.Second),
			RetryAttempts:   3,
			RetryBackoff:    Duration(2 * time.Second),
			StaggerInterval: Duration(3 * time.Second),
			MaxPostAge:      Duration(48 * time.Hour),
		},
		LLM: LLMConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
		},
		Notifications: NotificationConfig{
			Watch: []string{"Transport / Moving"},
		},
		Metrics: MetricsConfig{Enabled: false, Addr: ":9191"},
		Sources: []domain.SourceConfig{
			{Name: "example-group", URL: "https://feeds.example.org/groups/1", Depth: 1, Enabled: true},
		},
	}
}
