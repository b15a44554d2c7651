package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"event-quiz-service/internal/domain"
)

type Config struct {
	Server struct {
		Port          string `yaml:"port"`
		AdminUser     string `yaml:"admin_user"`
		AdminPassword string `yaml:"admin_password"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		QuestionCount   int               `yaml:"question_count"`
		DefaultDuration string            `yaml:"default_duration"`
		Durations       map[string]string `yaml:"durations"`
		AbandonPolicy   string            `yaml:"abandon_policy"`
		Seed            int64             `yaml:"seed"`
		CacheTTL        string            `yaml:"cache_ttl"`
	} `yaml:"quiz"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
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

// Validate rejects event names and durations that cannot be parsed.
func (c Config) Validate() error {
	if c.Quiz.QuestionCount < 0 {
		return fmt.Errorf("quiz.question_count must not be negative")
	}
	if c.Quiz.DefaultDuration != "" {
		if _, err := time.ParseDuration(c.Quiz.DefaultDuration); err != nil {
			return fmt.Errorf("quiz.default_duration: %w", err)
		}
	}
	for name, raw := range c.Quiz.Durations {
		if _, err := domain.ParseEvent(name); err != nil {
			return fmt.Errorf("quiz.durations: %q: %w", name, err)
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("quiz.durations[%s]: %w", name, err)
		}
	}
	return nil
}

// EventDurations returns the per-event quiz durations keyed by event.
func (c Config) EventDurations() map[domain.Event]time.Duration {
	out := make(map[domain.Event]time.Duration, len(c.Quiz.Durations))
	for name, raw := range c.Quiz.Durations {
		if d, err := time.ParseDuration(raw); err == nil {
			out[domain.Event(name)] = d
		}
	}
	return out
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
