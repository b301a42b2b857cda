package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode          string              `mapstructure:"mode"`
	Port          int                 `mapstructure:"port"`
	Secret        string              `mapstructure:"secret"`
	NodeID        string              `mapstructure:"node_id"`
	WebSocket     WebSocketConfig     `mapstructure:"websocket"`
	Call          CallConfig          `mapstructure:"call"`
	Policy        PolicyConfig        `mapstructure:"policy"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Bus           BusConfig           `mapstructure:"bus"`
	Store         StoreConfig         `mapstructure:"store"`
	Collaborators CollaboratorsConfig `mapstructure:"collaborators"`
	ICEServers    []ICEServerConfig   `mapstructure:"ice_servers"`
}

type WebSocketConfig struct {
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
}

type CallConfig struct {
	JoinLimit  int           `mapstructure:"join_limit"`
	JoinWindow time.Duration `mapstructure:"join_window"`
}

type PolicyConfig struct {
	Backpressure string `mapstructure:"backpressure"`
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type BusConfig struct {
	Type    string      `mapstructure:"type"`
	Channel string      `mapstructure:"channel"`
	Redis   RedisConfig `mapstructure:"redis"`
	Kafka   KafkaConfig `mapstructure:"kafka"`
}

type StoreConfig struct {
	Type        string        `mapstructure:"type"`
	PresenceTTL time.Duration `mapstructure:"presence_ttl"`
	Redis       RedisConfig   `mapstructure:"redis"`
}

type CollaboratorsConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type ICEServerConfig struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("secret", "change-me")

	v.SetDefault("websocket.read_limit", 32768)
	v.SetDefault("websocket.ping_period", "54s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "5s")
	v.SetDefault("websocket.send_buffer", 64)

	v.SetDefault("call.join_limit", 10)
	v.SetDefault("call.join_window", "10s")
	v.SetDefault("policy.backpressure", "kick")

	v.SetDefault("auth.enabled", false)

	v.SetDefault("bus.type", "memory")
	v.SetDefault("bus.channel", "huddle:events")
	v.SetDefault("bus.redis.address", "localhost:6379")
	v.SetDefault("bus.redis.pool_size", 20)
	v.SetDefault("bus.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("bus.kafka.topic", "huddle.domain-events")
	v.SetDefault("bus.kafka.group_id", "huddle")

	v.SetDefault("store.type", "memory")
	v.SetDefault("store.presence_ttl", "3m")
	v.SetDefault("store.redis.address", "localhost:6379")
	v.SetDefault("store.redis.pool_size", 20)

	v.SetDefault("collaborators.timeout", "3s")
	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
}

// bindEnvVars covers keys without a default, which AutomaticEnv alone
// would not surface on Unmarshal.
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("node_id", "HUDDLE_NODE_ID")
	_ = v.BindEnv("auth.jwt_secret", "HUDDLE_AUTH_JWT_SECRET")
	_ = v.BindEnv("bus.redis.password", "HUDDLE_BUS_REDIS_PASSWORD")
	_ = v.BindEnv("bus.redis.db", "HUDDLE_BUS_REDIS_DB")
	_ = v.BindEnv("store.redis.password", "HUDDLE_STORE_REDIS_PASSWORD")
	_ = v.BindEnv("store.redis.db", "HUDDLE_STORE_REDIS_DB")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("HUDDLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	bindEnvVars(v)
	return v
}

func Load() (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.NodeID == "" {
		host, _ := os.Hostname()
		cfg.NodeID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("node", cfg.NodeID).
		Str("bus", cfg.Bus.Type).
		Str("store", cfg.Store.Type).
		Msg("config ready")
	return &cfg, nil
}
