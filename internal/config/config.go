package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Tracing      TracingConfig `mapstructure:"tracing"`
	Redis        RedisConfig
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Progress     ProgressConfig     `mapstructure:"progress"`
	TimeTracking TimeTrackingConfig `mapstructure:"time_tracking"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string // mysql | postgres | sqlite
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool   `mapstructure:"parse_time"`
	SSLMode   string `mapstructure:"ssl_mode"`
	Path      string // sqlite 文件路径
	LogLevel  string `mapstructure:"log_level"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	ServiceName       string `mapstructure:"service_name"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Enabled      bool
	Host         string
	Port         int
	Password     string
	DB           int
	VoteCountTTL time.Duration `mapstructure:"vote_count_ttl"`
}

// ProgressConfig 经验奖励等可热更新的学习进度参数
type ProgressConfig struct {
	VideoCompletionRatio float64 `mapstructure:"video_completion_ratio"`
	VideoXP              int     `mapstructure:"video_xp"`
	ChapterXP            int     `mapstructure:"chapter_xp"`
	QuizPassXP           int     `mapstructure:"quiz_pass_xp"`
	MaxRetries           int     `mapstructure:"max_retries"`
}

type TimeTrackingConfig struct {
	StaleAfter    time.Duration `mapstructure:"stale_after"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	HistoryLimit  int           `mapstructure:"history_limit"`
}

// DefaultProgress 未配置时使用的奖励表
func DefaultProgress() ProgressConfig {
	return ProgressConfig{
		VideoCompletionRatio: 0.9,
		VideoXP:              10,
		ChapterXP:            50,
		QuizPassXP:           30,
		MaxRetries:           3,
	}
}

func DefaultTimeTracking() TimeTrackingConfig {
	return TimeTrackingConfig{
		StaleAfter:    2 * time.Hour,
		SweepInterval: 10 * time.Minute,
		HistoryLimit:  20,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parse_time", true)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("redis.vote_count_ttl", "5m")
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("tracing.service_name", "learnhub-backend")
	v.SetDefault("rate_limit.max_requests", 300)
	v.SetDefault("rate_limit.window_minutes", 1)

	p := DefaultProgress()
	v.SetDefault("progress.video_completion_ratio", p.VideoCompletionRatio)
	v.SetDefault("progress.video_xp", p.VideoXP)
	v.SetDefault("progress.chapter_xp", p.ChapterXP)
	v.SetDefault("progress.quiz_pass_xp", p.QuizPassXP)
	v.SetDefault("progress.max_retries", p.MaxRetries)

	t := DefaultTimeTracking()
	v.SetDefault("time_tracking.stale_after", t.StaleAfter.String())
	v.SetDefault("time_tracking.sweep_interval", t.SweepInterval.String())
	v.SetDefault("time_tracking.history_limit", t.HistoryLimit)
}

func LoadConfig(path string) (*Config, error) {
	// .env 只是补充环境变量，不存在时忽略
	_ = godotenv.Load(filepath.Join(path, "..", ".env"))

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("LEARNHUB")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("server.port", "SERVER_PORT")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Database.Driver == "sqlite" && cfg.Database.Path != "" {
		if dir := filepath.Dir(cfg.Database.Path); dir != "." {
			os.MkdirAll(dir, 0755)
		}
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	// 生产环境校验 JWT Secret 强度
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}

	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if r := c.Progress.VideoCompletionRatio; r <= 0 || r > 1 {
		return fmt.Errorf("progress.video_completion_ratio must be in (0, 1], got %v", r)
	}
	if c.Progress.MaxRetries < 1 {
		return fmt.Errorf("progress.max_retries must be at least 1")
	}
	if c.TimeTracking.HistoryLimit <= 0 {
		c.TimeTracking.HistoryLimit = DefaultTimeTracking().HistoryLimit
	}
	return nil
}
