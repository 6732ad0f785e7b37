package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerCfg struct {
	Port                int `mapstructure:"port"`
	ReadTimeoutSeconds  int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
}

type LogCfg struct {
	Development bool `mapstructure:"development"`
}

type MongoCfg struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisCfg struct {
	// Addr empty means single-process mode: in-memory bus and presence.
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
	Channel  string `mapstructure:"channel"`
}

type JWTCfg struct {
	Algorithm     string `mapstructure:"algorithm"` // HS256 or RS256
	Secret        string `mapstructure:"secret"`
	PublicKeyPath string `mapstructure:"public_key_path"`
}

type KafkaCfg struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type WSCfg struct {
	RateLimitPerSec   int   `mapstructure:"rate_limit_per_sec"`
	MaxMessageBytes   int64 `mapstructure:"max_message_bytes"`
	SendBuffer        int   `mapstructure:"send_buffer"`
	PongWaitSeconds   int   `mapstructure:"pong_wait_seconds"`
	WriteWaitSeconds  int   `mapstructure:"write_wait_seconds"`
	PresenceTTLSecond int   `mapstructure:"presence_ttl_seconds"`
}

type Config struct {
	Server ServerCfg `mapstructure:"server"`
	Log    LogCfg    `mapstructure:"log"`
	Mongo  MongoCfg  `mapstructure:"mongo"`
	Redis  RedisCfg  `mapstructure:"redis"`
	JWT    JWTCfg    `mapstructure:"jwt"`
	Kafka  KafkaCfg  `mapstructure:"kafka"`
	WS     WSCfg     `mapstructure:"ws"`

	// Derived
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PongWait     time.Duration
	PingPeriod   time.Duration
	WriteWait    time.Duration
	PresenceTTL  time.Duration
}

// Load reads an optional config file and applies APP_* env overrides
// (APP_SERVER_PORT, APP_REDIS_ADDR, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDefaults()

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.JWT.Algorithm == "HS256" && cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret required for HS256")
	}
	if cfg.JWT.Algorithm == "RS256" && cfg.JWT.PublicKeyPath == "" {
		return nil, fmt.Errorf("jwt public key path required for RS256")
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8086
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 15
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = 15
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "campus_chat"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "ws"
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "ws:events"
	}
	if c.JWT.Algorithm == "" {
		c.JWT.Algorithm = "HS256"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "chat.messages"
	}
	if c.WS.RateLimitPerSec == 0 {
		c.WS.RateLimitPerSec = 20
	}
	if c.WS.MaxMessageBytes == 0 {
		c.WS.MaxMessageBytes = 64 * 1024
	}
	if c.WS.SendBuffer == 0 {
		c.WS.SendBuffer = 256
	}
	if c.WS.PongWaitSeconds == 0 {
		c.WS.PongWaitSeconds = 60
	}
	if c.WS.WriteWaitSeconds == 0 {
		c.WS.WriteWaitSeconds = 10
	}
	if c.WS.PresenceTTLSecond == 0 {
		c.WS.PresenceTTLSecond = 90
	}

	c.ReadTimeout = time.Duration(c.Server.ReadTimeoutSeconds) * time.Second
	c.WriteTimeout = time.Duration(c.Server.WriteTimeoutSeconds) * time.Second
	c.PongWait = time.Duration(c.WS.PongWaitSeconds) * time.Second
	c.PingPeriod = c.PongWait * 9 / 10
	c.WriteWait = time.Duration(c.WS.WriteWaitSeconds) * time.Second
	c.PresenceTTL = time.Duration(c.WS.PresenceTTLSecond) * time.Second
}

func (c *Config) PortString() string {
	return fmt.Sprintf("%d", c.Server.Port)
}
