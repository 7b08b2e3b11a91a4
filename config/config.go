// Package config loads the service configuration from YAML with environment
// overrides for secrets and endpoints.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	MinPort = 1
	MaxPort = 65535
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  LoggingConfig  `yaml:"logging"`
	Auth     AuthConfig     `yaml:"auth"`
	Booking  BookingConfig  `yaml:"booking"`
	Notify   NotifyConfig   `yaml:"notify"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Timezone    string `yaml:"timezone"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig is optional; an empty address runs without the language cache.
type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	LanguageTTL time.Duration `yaml:"language_ttl"`
}

// RabbitMQConfig is optional; an empty URL keeps events in the log.
type RabbitMQConfig struct {
	URL           string        `yaml:"url"`
	Exchange      string        `yaml:"exchange"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableSource bool   `yaml:"enable_source"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// BookingConfig holds the lifecycle rules.
type BookingConfig struct {
	ImmediateLead time.Duration `yaml:"immediate_lead"`
	CancelWindow  time.Duration `yaml:"cancel_window"`
	Locale        string        `yaml:"locale"`
	SupportPhone  string        `yaml:"support_phone"`
}

// NotifyConfig holds the dispatch rules and sender identities.
type NotifyConfig struct {
	NightStartHour int    `yaml:"night_start_hour"`
	NightEndHour   int    `yaml:"night_end_hour"`
	BusinessHours  string `yaml:"business_hours"`
	SMSFrom        string `yaml:"sms_from"`
	PushAppID      string `yaml:"push_app_id"`
	PushTitle      string `yaml:"push_title"`
	Concurrency    int    `yaml:"concurrency"`
}

// Load reads path and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	overrides := map[string]*string{
		"DATABASE_URL":   &c.Database.URL,
		"REDIS_ADDR":     &c.Redis.Addr,
		"REDIS_PASSWORD": &c.Redis.Password,
		"RABBITMQ_URL":   &c.RabbitMQ.URL,
		"JWT_SECRET":     &c.Auth.JWTSecret,
		"SUPPORT_PHONE":  &c.Booking.SupportPhone,
	}
	for key, dst := range overrides {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Timezone == "" {
		c.App.Timezone = "Europe/Stockholm"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Booking.ImmediateLead <= 0 {
		c.Booking.ImmediateLead = 5 * time.Minute
	}
	if c.Booking.CancelWindow <= 0 {
		c.Booking.CancelWindow = 24 * time.Hour
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "bookingflow.events"
	}
}

// Location resolves App.Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: load timezone %q: %w", c.App.Timezone, err)
	}
	return loc, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database url is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth jwt_secret is required"))
	}
	if c.Booking.SupportPhone == "" {
		errs = append(errs, errors.New("booking support_phone is required"))
	}
	if c.Notify.NightStartHour < 0 || c.Notify.NightStartHour > 23 || c.Notify.NightEndHour < 0 || c.Notify.NightEndHour > 23 {
		errs = append(errs, fmt.Errorf("notify night hours out of range: %d-%d", c.Notify.NightStartHour, c.Notify.NightEndHour))
	}
	if c.Notify.Concurrency < 0 {
		errs = append(errs, errors.New("notify concurrency must not be negative"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
