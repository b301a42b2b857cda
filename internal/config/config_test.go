package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func defaults(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	v.Set("node_id", "node-test")
	cfg, err := decode(v)
	require.NoError(t, err)
	return cfg
}

func TestDefaults(t *testing.T) {
	req := require.New(t)

	cfg := defaults(t)

	req.Equal(8080, cfg.Port)
	req.Equal("memory", cfg.Bus.Type)
	req.Equal(54*time.Second, cfg.WebSocket.PingPeriod)
	req.Equal(3*time.Second, cfg.Collaborators.Timeout)
	req.Equal("node-test", cfg.NodeID)
	req.Len(cfg.ICEServers, 1)
	req.Equal([]string{"stun:stun.l.google.com:19302"}, cfg.ICEServers[0].URLs)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{name: "defaults", mutate: func(c *Config) {}, ok: true},
		{name: "bad port", mutate: func(c *Config) { c.Port = 0 }},
		{name: "auth without secret", mutate: func(c *Config) { c.Auth.Enabled = true }},
		{name: "auth with secret", mutate: func(c *Config) { c.Auth.Enabled = true; c.Auth.JWTSecret = "s" }, ok: true},
		{name: "ping after pong", mutate: func(c *Config) { c.WebSocket.PingPeriod = time.Minute * 2 }},
		{name: "unknown bus", mutate: func(c *Config) { c.Bus.Type = "nats" }},
		{name: "kafka without brokers", mutate: func(c *Config) { c.Bus.Type = "kafka"; c.Bus.Kafka.Brokers = nil }},
		{name: "redis store", mutate: func(c *Config) { c.Store.Type = "redis" }, ok: true},
		{name: "unknown policy", mutate: func(c *Config) { c.Policy.Backpressure = "block" }},
		{name: "zero timeout", mutate: func(c *Config) { c.Collaborators.Timeout = 0 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults(t)
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
		})
	}
}

func TestLoad_EnvOverridesKeysWithoutDefaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("CONFIG_ENV", "missing")
	t.Setenv("HUDDLE_NODE_ID", "node-a")
	t.Setenv("HUDDLE_AUTH_ENABLED", "true")
	t.Setenv("HUDDLE_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("HUDDLE_STORE_REDIS_PASSWORD", "pw")
	t.Setenv("HUDDLE_STORE_REDIS_DB", "2")
	t.Setenv("HUDDLE_BUS_REDIS_PASSWORD", "bus-pw")
	t.Setenv("HUDDLE_PORT", "9090")

	cfg, err := Load()

	req.NoError(err)
	req.Equal("node-a", cfg.NodeID)
	req.True(cfg.Auth.Enabled)
	req.Equal("s3cret", cfg.Auth.JWTSecret)
	req.Equal("pw", cfg.Store.Redis.Password)
	req.Equal(2, cfg.Store.Redis.DB)
	req.Equal("bus-pw", cfg.Bus.Redis.Password)
	req.Equal(9090, cfg.Port)
}
