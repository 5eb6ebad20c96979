package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken       string             `yaml:"discord_token"`
	LogLevel           string             `yaml:"log_level"`
	CommandPrefix      string             `yaml:"command_prefix"`
	GuildConfigPath    string             `yaml:"guild_config_path"`
	CustomCommandsPath string             `yaml:"custom_commands_path"`
	Responses          ResponsesConfig    `yaml:"responses"`
	Announcement       AnnouncementConfig `yaml:"announcement"`
	Reminders          ReminderConfig     `yaml:"reminders"`
	Polls              PollConfig         `yaml:"polls"`
	Welcome            WelcomeConfig      `yaml:"welcome"`
	Health             HealthConfig       `yaml:"health"`
	Service            ServiceConfig      `yaml:"service"`
	EmbedColors        EmbedColors        `yaml:"embed_colors"`
}

type ResponsesConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type AnnouncementConfig struct {
	ChannelID string `yaml:"channel_id"`
	Message   string `yaml:"message"`
	Hour      int    `yaml:"hour"`
	Timezone  string `yaml:"timezone"`
}

type ReminderConfig struct {
	SweepSeconds int `yaml:"sweep_seconds"`
}

type PollConfig struct {
	Capacity       int `yaml:"capacity"`
	RetentionHours int `yaml:"retention_hours"`
}

type WelcomeConfig struct {
	BackgroundURL string `yaml:"background_url"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ServiceConfig configures the canned-response HTTP service.
type ServiceConfig struct {
	Addr             string   `yaml:"addr"`
	DatabaseURL      string   `yaml:"database_url"`
	AutocertHosts    []string `yaml:"autocert_hosts"`
	AutocertCacheDir string   `yaml:"autocert_cache_dir"`
}

type EmbedColors struct {
	Info    int `yaml:"info"`
	Welcome int `yaml:"welcome"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel:           "info",
		GuildConfigPath:    "guild_config.json",
		CustomCommandsPath: "custom_commands.json",
		Responses:          ResponsesConfig{URL: "http://localhost:8000", TimeoutSeconds: 10},
		Announcement:       AnnouncementConfig{Message: "Good morning everyone!", Hour: 9, Timezone: "UTC"},
		Reminders:          ReminderConfig{SweepSeconds: 30},
		Polls:              PollConfig{Capacity: 500, RetentionHours: 168},
		Health:             HealthConfig{Enabled: false, Addr: ":8080"},
		Service:            ServiceConfig{Addr: ":8000", AutocertCacheDir: "autocert"},
		EmbedColors: EmbedColors{
			Info:    0x7289DA,
			Welcome: 0x2ECC71,
		},
	}
}

// Load reads the bot configuration. DISCORD_TOKEN is required.
func Load() (Config, error) {
	cfg, err := load()
	if err != nil {
		return Config{}, err
	}
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	return cfg, nil
}

// LoadService reads the configuration of the response service. DATABASE_URL is required.
func LoadService() (Config, error) {
	cfg, err := load()
	if err != nil {
		return Config{}, err
	}
	if cfg.Service.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	return cfg, nil
}

func load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	// .env is optional; variables already in the environment win.
	_ = godotenv.Load()

	applyEnv(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.CommandPrefix = envString("COMMAND_PREFIX", cfg.CommandPrefix)
	cfg.GuildConfigPath = envString("GUILD_CONFIG_PATH", cfg.GuildConfigPath)
	cfg.CustomCommandsPath = envString("CUSTOM_COMMANDS_PATH", cfg.CustomCommandsPath)
	cfg.Responses.URL = envString("RESPONSES_URL", cfg.Responses.URL)
	cfg.Responses.TimeoutSeconds = envInt("RESPONSES_TIMEOUT_SECONDS", cfg.Responses.TimeoutSeconds)
	cfg.Announcement.ChannelID = envString("ANNOUNCEMENT_CHANNEL_ID", cfg.Announcement.ChannelID)
	cfg.Announcement.Message = envString("ANNOUNCEMENT_MESSAGE", cfg.Announcement.Message)
	cfg.Announcement.Hour = envInt("ANNOUNCEMENT_HOUR", cfg.Announcement.Hour)
	cfg.Announcement.Timezone = envString("ANNOUNCEMENT_TIMEZONE", cfg.Announcement.Timezone)
	cfg.Reminders.SweepSeconds = envInt("REMINDER_SWEEP_SECONDS", cfg.Reminders.SweepSeconds)
	cfg.Polls.Capacity = envInt("POLL_CAPACITY", cfg.Polls.Capacity)
	cfg.Polls.RetentionHours = envInt("POLL_RETENTION_HOURS", cfg.Polls.RetentionHours)
	cfg.Welcome.BackgroundURL = envString("WELCOME_BACKGROUND_URL", cfg.Welcome.BackgroundURL)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Service.Addr = envString("SERVICE_ADDR", cfg.Service.Addr)
	cfg.Service.DatabaseURL = envString("DATABASE_URL", cfg.Service.DatabaseURL)
	cfg.Service.AutocertHosts = envList("AUTOCERT_HOSTS", cfg.Service.AutocertHosts)
	cfg.Service.AutocertCacheDir = envString("AUTOCERT_CACHE_DIR", cfg.Service.AutocertCacheDir)
}

func normalize(cfg *Config) {
	cfg.CommandPrefix = strings.TrimSpace(cfg.CommandPrefix)
	cfg.Responses.URL = strings.TrimRight(cfg.Responses.URL, "/")
	if cfg.Responses.TimeoutSeconds <= 0 {
		cfg.Responses.TimeoutSeconds = 10
	}
	if cfg.Announcement.Hour < 0 || cfg.Announcement.Hour > 23 {
		cfg.Announcement.Hour = 9
	}
	if cfg.Announcement.Timezone == "" {
		cfg.Announcement.Timezone = "UTC"
	}
	if cfg.Reminders.SweepSeconds <= 0 {
		cfg.Reminders.SweepSeconds = 30
	}
	if cfg.Polls.Capacity <= 0 {
		cfg.Polls.Capacity = 500
	}
	if cfg.Polls.RetentionHours <= 0 {
		cfg.Polls.RetentionHours = 168
	}
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))
	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var items []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
