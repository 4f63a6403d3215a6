package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"corsOrigins"`
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
	Auth struct {
		Secret       string `yaml:"secret"`
		Issuer       string `yaml:"issuer"`
		TokenTTL     string `yaml:"tokenTTL"`
		CookieName   string `yaml:"cookieName"`
		AutoRegister bool   `yaml:"autoRegister"`
	} `yaml:"auth"`
	OpenTDB struct {
		BaseURL    string `yaml:"baseURL"`
		Amount     int    `yaml:"amount"`
		Category   int    `yaml:"category"`
		Difficulty string `yaml:"difficulty"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"opentdb"`
	Quiz struct {
		Duration    string `yaml:"duration"`
		RevealDelay string `yaml:"revealDelay"`
		StateDir    string `yaml:"stateDir"`
	} `yaml:"quiz"`
	Events struct {
		AMQPURL  string `yaml:"amqpURL"`
		Exchange string `yaml:"exchange"`
	} `yaml:"events"`
}

// Default returns the settings used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.CORSOrigins = []string{"http://localhost:3000"}
	cfg.Redis.TTL = "24h"
	cfg.Auth.Issuer = "trivia-quiz-service"
	cfg.Auth.TokenTTL = "24h"
	cfg.Auth.CookieName = "quiz_session"
	cfg.OpenTDB.BaseURL = "https://opentdb.com/api.php"
	cfg.OpenTDB.Amount = 20
	cfg.OpenTDB.Category = 18
	cfg.OpenTDB.Difficulty = "hard"
	cfg.OpenTDB.Timeout = "10s"
	cfg.Quiz.Duration = "600s"
	cfg.Quiz.RevealDelay = "1s"
	cfg.Quiz.StateDir = ".quiz"
	cfg.Events.Exchange = "quiz.events"
	return cfg
}

// Load reads YAML config from path on top of Default, then applies env
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"PORT", &cfg.Server.Port},
		{"POSTGRES_URL", &cfg.Postgres.URL},
		{"REDIS_ADDR", &cfg.Redis.Addr},
		{"AUTH_SECRET", &cfg.Auth.Secret},
		{"AMQP_URL", &cfg.Events.AMQPURL},
		{"OPENTDB_URL", &cfg.OpenTDB.BaseURL},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.key)); v != "" {
			*o.dst = v
		}
	}
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
