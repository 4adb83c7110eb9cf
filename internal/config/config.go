package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Store     StoreConfig     `yaml:"store"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Sources   SourcesConfig   `yaml:"sources"`
	Search    SearchConfig    `yaml:"search"`
	Identity  IdentityConfig  `yaml:"identity"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Run       RunConfig       `yaml:"run"`
	LogLevel  string          `yaml:"log_level"`
}

type StoreConfig struct {
	// Driver selects the backing store: "postgres" or "sheet".
	Driver    string         `yaml:"driver"`
	Database  DatabaseConfig `yaml:"database"`
	SheetPath string         `yaml:"sheet_path"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

type SourcesConfig struct {
	Adzuna AdzunaConfig `yaml:"adzuna"`
	Reed   ReedConfig   `yaml:"reed"`
	HTTP   HTTPConfig   `yaml:"http"`
}

type AdzunaConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	AppID   string `yaml:"app_id"`
	AppKey  string `yaml:"app_key"`
	Country string `yaml:"country"`
}

type ReedConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type HTTPConfig struct {
	PageSize int           `yaml:"page_size"`
	Timeout  time.Duration `yaml:"timeout"`
	Retry    RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type SearchConfig struct {
	Keywords         []string `yaml:"keywords"`
	ExcludedKeywords []string `yaml:"excluded_keywords"`
	Locations        []string `yaml:"locations"`
	SalaryFloor      float64  `yaml:"salary_floor"`
}

type IdentityConfig struct {
	// MatchThreshold is the minimum similarity for a fuzzy fingerprint
	// match, in [0,1].
	MatchThreshold float64 `yaml:"match_threshold"`
}

type LifecycleConfig struct {
	MaxConcurrent  int           `yaml:"max_concurrent"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	RetryBudget    int           `yaml:"retry_budget"`
	Tailor         TailorConfig  `yaml:"tailor"`
	TemplatePath   string        `yaml:"template_path"`
	OutputDir      string        `yaml:"output_dir"`
	ResumeDataPath string        `yaml:"resume_data_path"`
}

type TailorConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type RunConfig struct {
	Interval time.Duration `yaml:"interval"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Store.Driver == "" {
		c.Store.Driver = "sheet"
	}
	if c.Store.SheetPath == "" {
		c.Store.SheetPath = "applications.xlsx"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "job_applier"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "status_events"
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = "application_status"
	}
	if c.Sources.Adzuna.BaseURL == "" {
		c.Sources.Adzuna.BaseURL = "https://api.adzuna.com/v1/api/jobs"
	}
	if c.Sources.Adzuna.Country == "" {
		c.Sources.Adzuna.Country = "gb"
	}
	if c.Sources.Reed.BaseURL == "" {
		c.Sources.Reed.BaseURL = "https://www.reed.co.uk/api/1.0/search"
	}
	if c.Sources.HTTP.PageSize == 0 {
		c.Sources.HTTP.PageSize = 50
	}
	if c.Sources.HTTP.Timeout == 0 {
		c.Sources.HTTP.Timeout = 30 * time.Second
	}
	if c.Sources.HTTP.Retry.MaxAttempts == 0 {
		c.Sources.HTTP.Retry.MaxAttempts = 3
	}
	if c.Sources.HTTP.Retry.InitialBackoff == 0 {
		c.Sources.HTTP.Retry.InitialBackoff = 1 * time.Second
	}
	if c.Sources.HTTP.Retry.MaxBackoff == 0 {
		c.Sources.HTTP.Retry.MaxBackoff = 30 * time.Second
	}
	if c.Identity.MatchThreshold == 0 {
		c.Identity.MatchThreshold = 0.9
	}
	if c.Lifecycle.MaxConcurrent == 0 {
		c.Lifecycle.MaxConcurrent = 3
	}
	if c.Lifecycle.CallTimeout == 0 {
		c.Lifecycle.CallTimeout = 2 * time.Minute
	}
	if c.Lifecycle.RetryBudget == 0 {
		c.Lifecycle.RetryBudget = 3
	}
	if c.Lifecycle.Tailor.Model == "" {
		c.Lifecycle.Tailor.Model = "gpt-4o-mini"
	}
	if c.Lifecycle.TemplatePath == "" {
		c.Lifecycle.TemplatePath = "assets/resume_template.tmpl"
	}
	if c.Lifecycle.OutputDir == "" {
		c.Lifecycle.OutputDir = "generated_resumes"
	}
	if c.Lifecycle.ResumeDataPath == "" {
		c.Lifecycle.ResumeDataPath = "assets/resume_data.json"
	}
	if c.Run.Interval == 0 {
		c.Run.Interval = 6 * time.Hour
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
