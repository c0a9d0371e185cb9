package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Minio     MinioConfig     `yaml:"minio"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	AI        AIConfig        `yaml:"ai"`
	Auth      AuthConfig      `yaml:"auth"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type MinioConfig struct {
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Bucket        string `yaml:"bucket"`
	UseSSL        bool   `yaml:"use_ssl"`
	PresignExpire int    `yaml:"presign_expire_hours"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers        []string `yaml:"brokers"`
	IngestTopic    string   `yaml:"ingest_topic"`
	PublishTimeout int      `yaml:"publish_timeout_seconds"`
}

type AIConfig struct {
	BaseURL           string  `yaml:"base_url"`
	CallbackSecret    string  `yaml:"callback_secret"`
	RequestTimeout    int     `yaml:"request_timeout_seconds"`
	DefaultPointValue float64 `yaml:"default_point_value"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type CacheConfig struct {
	VersionPrefix     string `yaml:"version_prefix"`
	DefaultTTLMinutes int    `yaml:"default_ttl_minutes"`
	// Per-cache-name TTL overrides in minutes. Fixed configuration, not
	// caller-overridable.
	TTLMinutes map[string]int `yaml:"ttl_minutes"`
}

type RateLimitConfig struct {
	// Limiting is on unless explicitly disabled.
	Disabled  bool        `yaml:"disabled"`
	Auth      LimitPolicy `yaml:"auth"`
	Expensive LimitPolicy `yaml:"expensive"`
	Default   LimitPolicy `yaml:"default"`
}

type LimitPolicy struct {
	Limit         int `yaml:"limit"`
	WindowSeconds int `yaml:"window_seconds"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Minio.PresignExpire == 0 {
		cfg.Minio.PresignExpire = 168
	}
	if cfg.Kafka.IngestTopic == "" {
		cfg.Kafka.IngestTopic = "document-ingest-requests"
	}
	if cfg.Kafka.PublishTimeout == 0 {
		cfg.Kafka.PublishTimeout = 5
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = "http://ai-service"
	}
	if cfg.AI.RequestTimeout == 0 {
		cfg.AI.RequestTimeout = 60
	}
	if cfg.AI.DefaultPointValue == 0 {
		cfg.AI.DefaultPointValue = 0.25
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}
	if cfg.Cache.VersionPrefix == "" {
		cfg.Cache.VersionPrefix = "v4"
	}
	if cfg.Cache.DefaultTTLMinutes == 0 {
		cfg.Cache.DefaultTTLMinutes = 60
	}
	if cfg.Cache.TTLMinutes == nil {
		cfg.Cache.TTLMinutes = map[string]int{
			"userProfileByEmailV2": 20,
			"cardMetadataByUserV2": 30,
			"aiRecommendationsV2":  10,
		}
	}
	applyLimitDefaults(&cfg.RateLimit.Auth, 10, 60)
	applyLimitDefaults(&cfg.RateLimit.Expensive, 12, 60)
	applyLimitDefaults(&cfg.RateLimit.Default, 120, 60)

	return &cfg, nil
}

func applyLimitDefaults(p *LimitPolicy, limit, window int) {
	if p.Limit == 0 {
		p.Limit = limit
	}
	if p.WindowSeconds == 0 {
		p.WindowSeconds = window
	}
}
