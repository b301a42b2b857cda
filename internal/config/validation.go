package config

import (
	"errors"
	"fmt"
	"strings"
)

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.New("invalid server port")
	}
	switch c.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid mode: %s", c.Mode)
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret must be set when auth is enabled")
	}

	if c.WebSocket.PingPeriod >= c.WebSocket.PongWait {
		return errors.New("websocket.ping_period should be less than websocket.pong_wait")
	}
	if c.WebSocket.SendBuffer < 1 {
		return errors.New("websocket.send_buffer must be positive")
	}

	if c.Call.JoinLimit < 1 || c.Call.JoinWindow <= 0 {
		return errors.New("call.join_limit and call.join_window must be positive")
	}

	switch strings.ToLower(c.Policy.Backpressure) {
	case "kick", "drop":
	default:
		return fmt.Errorf("invalid backpressure policy: %s. Must be 'kick' or 'drop'", c.Policy.Backpressure)
	}

	switch strings.ToLower(c.Bus.Type) {
	case "memory":
	case "redis":
		if c.Bus.Redis.Address == "" || c.Bus.Channel == "" {
			return errors.New("bus.redis.address and bus.channel must be set for redis bus")
		}
	case "kafka":
		if len(c.Bus.Kafka.Brokers) == 0 {
			return errors.New("kafka brokers must be specified for kafka bus")
		}
		if c.Bus.Kafka.GroupID == "" || c.Bus.Kafka.Topic == "" {
			return errors.New("bus.kafka.group_id and bus.kafka.topic must be set for kafka bus")
		}
	default:
		return fmt.Errorf("invalid bus type: %s. Must be 'memory', 'redis' or 'kafka'", c.Bus.Type)
	}

	switch strings.ToLower(c.Store.Type) {
	case "memory":
	case "redis":
		if c.Store.Redis.Address == "" {
			return errors.New("store.redis.address must be set for redis store")
		}
	default:
		return fmt.Errorf("invalid store type: %s. Must be 'memory' or 'redis'", c.Store.Type)
	}

	if c.Collaborators.Timeout <= 0 {
		return errors.New("collaborators.timeout must be positive")
	}
	return nil
}
