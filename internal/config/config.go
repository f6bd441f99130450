package config

import (
	"bytes"
	_ "embed"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig      `mapstructure:"http"`
	MySQL      DatabaseConfig  `mapstructure:"mysql"`
	ClickHouse DatabaseConfig  `mapstructure:"clickhouse"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Kafka      KafkaConfig     `mapstructure:"kafka"`
	WhatsApp   WhatsAppConfig  `mapstructure:"whatsapp"`
	Reminders  RemindersConfig `mapstructure:"reminders"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Log        LogConfig       `mapstructure:"log"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr   string `mapstructure:"addr"`
	APIKey string `mapstructure:"api_key"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	AuditTopic   string        `mapstructure:"audit_topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

type WhatsAppConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	PhoneNumberID string        `mapstructure:"phone_number_id"`
	AccessToken   string        `mapstructure:"access_token"`
	VerifyToken   string        `mapstructure:"verify_token"`
	AppSecret     string        `mapstructure:"app_secret"`
	TimeoutMs     int           `mapstructure:"timeout_ms"`
	Breaker       BreakerConfig `mapstructure:"breaker"`
}

type TemplateConfig struct {
	Name     string `mapstructure:"name"`
	Language string `mapstructure:"language"`
}

type TemplatesConfig struct {
	Initial     TemplateConfig `mapstructure:"initial"`
	MenuCreated TemplateConfig `mapstructure:"menu_created"`
	MenuClosing TemplateConfig `mapstructure:"menu_closing"`
}

type RemindersConfig struct {
	WindowHours     int             `mapstructure:"window_hours"`
	PendingTTLHours int             `mapstructure:"pending_ttl_hours"`
	Tick            time.Duration   `mapstructure:"tick"`
	ShopURL         string          `mapstructure:"shop_url"`
	Templates       TemplatesConfig `mapstructure:"templates"`
}

type RateLimitConfig struct {
	RPS   int `mapstructure:"rps"`
	Burst int `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (RMGW_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (RMGW_*)
	v.SetEnvPrefix("RMGW")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
