// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type GenerationConfig struct {
	OpenAIKey    string `yaml:"openai_key"`
	GeminiKey    string `yaml:"gemini_key"`
	ScriptModel  string `yaml:"script_model"`
	SpeechModel  string `yaml:"speech_model"`
	WhisperModel string `yaml:"whisper_model"`
	ImageModel   string `yaml:"image_model"`
	FFmpegPath   string `yaml:"ffmpeg_path"`
	VideoWidth   int    `yaml:"video_width"`
	VideoHeight  int    `yaml:"video_height"`
	// PromptBudgetTokens caps the script prompt after token counting.
	PromptBudgetTokens int `yaml:"prompt_budget_tokens"`
}

type StorageConfig struct {
	RootDir string `yaml:"root_dir"` // object store root on local disk
}

type WorkerConfig struct {
	Count        int           `yaml:"count"`         // concurrent pipeline runners
	PollInterval time.Duration `yaml:"poll_interval"` // queue poll cadence
	Lease        time.Duration `yaml:"lease"`         // queue delivery lease
	SweepEvery   time.Duration `yaml:"sweep_every"`   // expired-lease sweep cadence
	MaxRetries   int           `yaml:"max_retries"`
	StepTimeout  time.Duration `yaml:"step_timeout"`
}

type CreditsConfig struct {
	BaseCredits            int `yaml:"base_credits"`
	CreditsPerMinute       int `yaml:"credits_per_minute"`
	RefundThresholdPercent int `yaml:"refund_threshold_percent"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Admin      AdminConfig      `yaml:"admin"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Generation GenerationConfig `yaml:"generation"`
	Storage    StorageConfig    `yaml:"storage"`
	Worker     WorkerConfig     `yaml:"worker"`
	Credits    CreditsConfig    `yaml:"credits"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string = ""
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port <= 0 {
		cfg.Admin.Port = 8080
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.Generation.ScriptModel == "" {
		cfg.Generation.ScriptModel = "gpt-4o-mini"
	}
	if cfg.Generation.SpeechModel == "" {
		cfg.Generation.SpeechModel = "tts-1"
	}
	if cfg.Generation.WhisperModel == "" {
		cfg.Generation.WhisperModel = "whisper-1"
	}
	if cfg.Generation.ImageModel == "" {
		cfg.Generation.ImageModel = "imagen-3.0-generate-002"
	}
	if cfg.Generation.FFmpegPath == "" {
		cfg.Generation.FFmpegPath = "ffmpeg"
	}
	if cfg.Generation.VideoWidth <= 0 {
		cfg.Generation.VideoWidth = 1280
	}
	if cfg.Generation.VideoHeight <= 0 {
		cfg.Generation.VideoHeight = 720
	}
	if cfg.Generation.PromptBudgetTokens <= 0 {
		cfg.Generation.PromptBudgetTokens = 3000
	}

	if cfg.Storage.RootDir == "" {
		cfg.Storage.RootDir = "data/objects"
	}

	if cfg.Worker.Count <= 0 {
		cfg.Worker.Count = 4
	}
	if cfg.Worker.PollInterval <= 0 {
		cfg.Worker.PollInterval = 2 * time.Second
	}
	if cfg.Worker.Lease <= 0 {
		cfg.Worker.Lease = 5 * time.Minute
	}
	if cfg.Worker.SweepEvery <= 0 {
		cfg.Worker.SweepEvery = time.Minute
	}
	if cfg.Worker.MaxRetries <= 0 {
		cfg.Worker.MaxRetries = 3
	}
	if cfg.Worker.StepTimeout <= 0 {
		cfg.Worker.StepTimeout = 5 * time.Minute
	}

	if cfg.Credits.BaseCredits <= 0 {
		cfg.Credits.BaseCredits = 4
	}
	if cfg.Credits.CreditsPerMinute <= 0 {
		cfg.Credits.CreditsPerMinute = 6
	}
	if cfg.Credits.RefundThresholdPercent <= 0 {
		cfg.Credits.RefundThresholdPercent = 30
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
