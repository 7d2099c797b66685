package config

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	App      AppConfig      `mapstructure:"app"`
	Business BusinessConfig `mapstructure:"business"`
	YooKassa YooKassaConfig `mapstructure:"yookassa"`
	CDEK     CDEKConfig     `mapstructure:"cdek"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int64  `mapstructure:"expire"` // hours
}

type AppConfig struct {
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

// BusinessConfig carries group-buy defaults applied when a group is created
// without explicit limits.
type BusinessConfig struct {
	DefaultMinParticipants int `mapstructure:"default_min_participants"`
	DefaultMaxParticipants int `mapstructure:"default_max_participants"`
	DefaultDeadlineDays    int `mapstructure:"default_deadline_days"`
	// Interval between deadline sweeps, seconds.
	SchedulerIntervalSec int `mapstructure:"scheduler_interval_sec"`
}

// SchedulerInterval returns the sweep interval as a duration.
func (b BusinessConfig) SchedulerInterval() time.Duration {
	if b.SchedulerIntervalSec <= 0 {
		return time.Minute
	}
	return time.Duration(b.SchedulerIntervalSec) * time.Second
}

type YooKassaConfig struct {
	ShopID        string `mapstructure:"shop_id"`
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	ReturnURL     string `mapstructure:"return_url"`
}

type CDEKConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Mode         string `mapstructure:"mode"` // test, prod
}

type TelegramConfig struct {
	BotToken  string `mapstructure:"bot_token"`
	WebAppURL string `mapstructure:"webapp_url"`
}

var GlobalConfig Config

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" || c.JWT.Secret == "your_super_secret_key" {
		return errors.New("please set a secure JWT secret in production")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT secret should be at least 32 characters")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return errors.New("database configuration is incomplete")
	}

	if c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}

	if c.Business.DefaultMinParticipants < 2 {
		return errors.New("business.default_min_participants must be at least 2")
	}
	if c.Business.DefaultMaxParticipants < c.Business.DefaultMinParticipants {
		return errors.New("business.default_max_participants must be >= default_min_participants")
	}

	return nil
}

// LoadConfig reads config.yaml (or config.<env>.yaml) plus env overrides.
func LoadConfig() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	configName := "config"
	if env != "" && env != "dev" {
		configName = "config." + env
	}

	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("jwt.expire", 24*7)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("app.env", "dev")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("business.default_min_participants", 3)
	viper.SetDefault("business.default_max_participants", 100)
	viper.SetDefault("business.default_deadline_days", 7)
	viper.SetDefault("business.scheduler_interval_sec", 60)
	viper.SetDefault("cdek.mode", "test")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults or env vars: %v", err)
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&GlobalConfig); err != nil {
		log.Fatalf("Unable to decode into struct: %v", err)
	}

	// Explicit env overrides for the values that change per deployment.
	if host := os.Getenv("DB_HOST"); host != "" {
		GlobalConfig.Database.Host = host
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		GlobalConfig.Redis.Addr = redisAddr
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		GlobalConfig.JWT.Secret = jwtSecret
	}
	if shopID := os.Getenv("YOOKASSA_SHOP_ID"); shopID != "" {
		GlobalConfig.YooKassa.ShopID = shopID
	}
	if secret := os.Getenv("YOOKASSA_SECRET_KEY"); secret != "" {
		GlobalConfig.YooKassa.SecretKey = secret
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		GlobalConfig.Telegram.BotToken = token
	}

	if err := GlobalConfig.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	log.Printf("Configuration loaded and validated successfully. Environment: %s", GlobalConfig.App.Env)
}
