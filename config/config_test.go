package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "REDIS_ADDR", "REDIS_PASSWORD", "RABBITMQ_URL", "JWT_SECRET", "SUPPORT_PHONE", "PORT"} {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name      string
		path      string
		errString string
	}{
		{name: "valid config file", path: "testdata/valid_config.yaml"},
		{name: "non-existent file", path: "testdata/nonexistent.yaml", errString: "config: read"},
		{name: "malformed yaml", path: "testdata/malformed.yaml", errString: "config: parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.path)
			if tt.errString != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "bookingflow.events", cfg.RabbitMQ.Exchange)
			assert.Equal(t, 5*time.Minute, cfg.Booking.ImmediateLead)
			assert.Equal(t, 24*time.Hour, cfg.Booking.CancelWindow)
			assert.Equal(t, "0 0 7 * * *", cfg.Notify.BusinessHours)
			assert.Equal(t, 8, cfg.Notify.Concurrency)
			require.NoError(t, cfg.Validate())
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("testdata/minimal.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Stockholm", cfg.App.Timezone)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.Booking.ImmediateLead)
	assert.Equal(t, "bookingflow.events", cfg.RabbitMQ.Exchange)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://env@db:5432/bookingflow")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("RABBITMQ_URL", "amqp://env@mq:5672/")
	t.Setenv("PORT", "9999")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "postgres://env@db:5432/bookingflow", cfg.Database.URL)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "amqp://env@mq:5672/", cfg.RabbitMQ.URL)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	t.Setenv("PORT", "eighty")
	_, err = Load("testdata/valid_config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PORT")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:      AppConfig{Timezone: "UTC"},
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{URL: "postgres://localhost/bookingflow"},
			Auth:     AuthConfig{JWTSecret: "secret"},
			Booking:  BookingConfig{SupportPhone: "010"},
			Notify:   NotifyConfig{NightStartHour: 22, NightEndHour: 7},
		}
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		errString string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "port too low", mutate: func(c *Config) { c.Server.Port = 0 }, errString: "invalid server port"},
		{name: "port too high", mutate: func(c *Config) { c.Server.Port = 70000 }, errString: "invalid server port"},
		{name: "no database", mutate: func(c *Config) { c.Database.URL = "" }, errString: "database url is required"},
		{name: "no secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, errString: "jwt_secret is required"},
		{name: "no support phone", mutate: func(c *Config) { c.Booking.SupportPhone = "" }, errString: "support_phone is required"},
		{name: "night hour", mutate: func(c *Config) { c.Notify.NightStartHour = 24 }, errString: "night hours out of range"},
		{name: "timezone", mutate: func(c *Config) { c.App.Timezone = "Mars/Olympus" }, errString: "load timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errString == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}

	cfg := valid()
	cfg.Server.Port = 0
	cfg.Database.URL = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
	assert.Contains(t, err.Error(), "database url is required")
}
