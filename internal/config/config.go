package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Catalog struct {
		Path string `yaml:"path"`
		TTL  string `yaml:"ttl"`
	} `yaml:"catalog"`
	Quiz struct {
		CuratedIDs    []string `yaml:"curated_ids"`
		QuestionCount int      `yaml:"question_count"`
		MinCorrect    int      `yaml:"min_correct"`
		SecretMessage string   `yaml:"secret_message"`
		SessionTTL    string   `yaml:"session_ttl"`
		SessionCap    int      `yaml:"session_cap"`
	} `yaml:"quiz"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Assistant struct {
		APIKey       string `yaml:"-"` // env only, never from file
		AssistantID  string `yaml:"assistant_id"`
		PollInterval string `yaml:"poll_interval"`
		PollDeadline string `yaml:"poll_deadline"`
		ThreadCap    int    `yaml:"thread_cap"`
	} `yaml:"assistant"`
}

// DefaultCuratedIDs is the allow-list of question IDs eligible for sampling.
// Only IDs also present in the loaded catalog are candidates.
var DefaultCuratedIDs = []string{
	"1", "154", "157", "159", "165", "171", "173", "174",
	"178", "180", "182", "184", "185", "190", "191", "192",
	"200", "201", "202", "207", "208", "209", "212", "213",
}

// Load reads YAML config from path and applies env overrides and defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return applyDefaults(cfg), err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return applyDefaults(cfg), err
	}
	return applyDefaults(cfg), nil
}

func applyDefaults(cfg Config) Config {
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "data/puzzles.json"
	}
	if len(cfg.Quiz.CuratedIDs) == 0 {
		cfg.Quiz.CuratedIDs = DefaultCuratedIDs
	}
	if cfg.Quiz.QuestionCount <= 0 {
		cfg.Quiz.QuestionCount = 5
	}
	if cfg.Quiz.MinCorrect <= 0 {
		cfg.Quiz.MinCorrect = 2
	}
	if cfg.Quiz.SecretMessage == "" {
		cfg.Quiz.SecretMessage = "We are currently clean on OPSEC"
	}
	if cfg.Quiz.SessionCap <= 0 {
		cfg.Quiz.SessionCap = 10000
	}
	if cfg.Assistant.ThreadCap <= 0 {
		cfg.Assistant.ThreadCap = 10000
	}
	cfg.Assistant.APIKey = os.Getenv("OPENAI_API_KEY")
	if env := os.Getenv("ASSISTANT_ID"); env != "" {
		cfg.Assistant.AssistantID = env
	}
	return cfg
}

// TTLDuration parses a duration string or returns the fallback if empty or invalid.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
