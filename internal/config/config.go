package config

import (
	"os"
	"strings"
	"time"

	"culture-quiz-service/internal/app"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`
	Quiz struct {
		PerQuestion            string `yaml:"per_question"`
		MaxQuestions           int    `yaml:"max_questions"`
		Retention              string `yaml:"retention"`
		LobbyTTL               string `yaml:"lobby_ttl"`
		SweepInterval          string `yaml:"sweep_interval"`
		BankTTL                string `yaml:"bank_ttl"`
		RedactAnswers          bool   `yaml:"redact_answers"`
		AdvanceWhenAllAnswered bool   `yaml:"advance_when_all_answered"`
	} `yaml:"quiz"`
}

// Load reads YAML config from path. A missing file yields the zero config.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
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

// Settings converts the quiz section into service settings.
func (c Config) Settings() app.Settings {
	def := app.DefaultSettings()
	s := app.Settings{
		PerQuestion:            TTLDuration(c.Quiz.PerQuestion, def.PerQuestion),
		MaxQuestions:           def.MaxQuestions,
		Retention:              TTLDuration(c.Quiz.Retention, def.Retention),
		LobbyTTL:               TTLDuration(c.Quiz.LobbyTTL, def.LobbyTTL),
		AdvanceWhenAllAnswered: c.Quiz.AdvanceWhenAllAnswered,
	}
	if c.Quiz.MaxQuestions > 0 {
		s.MaxQuestions = c.Quiz.MaxQuestions
	}
	return s
}

func (c Config) SweepInterval() time.Duration {
	return TTLDuration(c.Quiz.SweepInterval, time.Minute)
}

func (c Config) BankTTL() time.Duration {
	return TTLDuration(c.Quiz.BankTTL, 10*time.Minute)
}

func (c Config) RedisTTL() time.Duration {
	return TTLDuration(c.Redis.TTL, 2*time.Hour)
}

// Origins returns the allowed origins, "*" when none are configured.
func (c Config) Origins() []string {
	var out []string
	for _, o := range c.Server.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
