// Package config 负责读取 YAML 配置文件、.env 与环境变量，并在启动时校验。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ats-radar/internal/enhance"
	"ats-radar/internal/fetcher"
	"ats-radar/internal/llm"
	"ats-radar/internal/logger"
	"ats-radar/internal/reconcile"
	"ats-radar/internal/scheduler"
	"ats-radar/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

// AppConfig 应用配置。
type AppConfig struct {
	Log          logger.Config    `yaml:"log"`
	Database     storage.Config   `yaml:"database"`
	Redis        RedisConfig      `yaml:"redis"`
	Server       ServerConfig     `yaml:"server"`
	Schedule     scheduler.Config `yaml:"schedule"`
	Fetcher      fetcher.Config   `yaml:"fetcher"`
	AI           llm.Config       `yaml:"ai"`
	Enhance      enhance.Config   `yaml:"enhance"`
	GC           reconcile.Config `yaml:"gc"`
	TaxonomyFile string           `yaml:"taxonomy_file"`
}

// RedisConfig 配置跨进程锁，URL 为空时不加锁。
type RedisConfig struct {
	URL     string        `yaml:"url" validate:"omitempty,url"`
	Prefix  string        `yaml:"prefix"`
	LockTTL time.Duration `yaml:"lock_ttl" validate:"gte=0"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// Default 返回默认配置，所有来源默认关闭。
func Default() AppConfig {
	return AppConfig{
		Log:      logger.Config{Level: "info", Format: "json"},
		Database: storage.Config{Driver: storage.DriverSQLite, DSN: "data/jobs.db"},
		Redis:    RedisConfig{Prefix: "ats-radar:", LockTTL: 2 * time.Hour},
		Server:   ServerConfig{Addr: ":8080"},
		Schedule: scheduler.Config{Interval: "6h", Timeout: "2h"},
		Fetcher:  fetcher.Config{RequestDelay: time.Second},
		AI:       llm.Config{Chain: llm.DefaultChainConfig()},
		Enhance:  enhance.Config{Locale: enhance.DefaultLocale, CacheSize: enhance.DefaultCacheSize},
		GC: reconcile.Config{
			Strategy:        reconcile.StrategyGracePeriod,
			GracePeriodDays: reconcile.DefaultGracePeriodDays,
			MinJobCount:     reconcile.DefaultMinJobCount,
		},
	}
}

// Path 返回配置文件路径：命令行参数优先，其次 CONFIG_FILE，最后 config.yaml。
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		return p
	}
	return DefaultPath
}

// Load 读取 .env、配置文件与环境变量。配置文件不存在时使用默认值。
func Load(path string) (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("load .env: %w", err)
	}
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (AppConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return AppConfig{}, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("GEMINI_API_KEY", &cfg.AI.Gemini.APIKey)
	str("GEMINI_API_KEY_SECONDARY", &cfg.AI.GeminiSecondaryKey)
	str("GROQ_API_KEY", &cfg.AI.Alternate.APIKey)
	str("AI_MODEL", &cfg.AI.Gemini.Model)
	str("DATABASE_DRIVER", &cfg.Database.Driver)
	str("DATABASE_URL", &cfg.Database.DSN)
	str("REDIS_URL", &cfg.Redis.URL)
	str("LOG_LEVEL", &cfg.Log.Level)

	var strategy string
	str("GC_STRATEGY", &strategy)
	if strategy != "" {
		cfg.GC.Strategy = reconcile.Strategy(strategy)
	}

	for key, dst := range map[string]*int{
		"GC_GRACE_PERIOD_DAYS": &cfg.GC.GracePeriodDays,
		"GC_MIN_JOB_COUNT":     &cfg.GC.MinJobCount,
	} {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

// Validate 在任何抓取开始前检查配置，错误直接终止进程。
func (c AppConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	var errs []error
	if err := v.Struct(c.Server); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if err := v.Struct(c.Redis); err != nil {
		errs = append(errs, fmt.Errorf("redis: %w", err))
	}
	if err := v.Var(strings.ToLower(c.Database.Driver), "required,oneof=sqlite postgres"); err != nil {
		errs = append(errs, fmt.Errorf("database.driver %q: %w", c.Database.Driver, err))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required (DATABASE_URL)"))
	}
	if _, err := reconcile.ParseStrategy(string(c.GC.Strategy)); err != nil {
		errs = append(errs, err)
	}
	if c.GC.GracePeriodDays <= 0 {
		errs = append(errs, fmt.Errorf("gc.grace_period_days must be positive, got %d", c.GC.GracePeriodDays))
	}
	if c.GC.MinJobCount <= 0 {
		errs = append(errs, fmt.Errorf("gc.min_job_count must be positive, got %d", c.GC.MinJobCount))
	}
	if err := scheduler.ValidateSchedule(c.Schedule.Interval); err != nil {
		errs = append(errs, fmt.Errorf("schedule.interval: %w", err))
	}
	errs = append(errs, c.validateSources()...)

	return errors.Join(errs...)
}

func (c AppConfig) validateSources() []error {
	var errs []error
	enabled := 0
	for _, src := range []struct {
		name string
		cfg  fetcher.SourceConfig
	}{
		{fetcher.SourceGreenhouse, c.Fetcher.Greenhouse},
		{fetcher.SourceLever, c.Fetcher.Lever},
		{fetcher.SourceAshby, c.Fetcher.Ashby},
	} {
		if !src.cfg.Enabled {
			continue
		}
		enabled++
		if len(src.cfg.Boards) == 0 {
			errs = append(errs, fmt.Errorf("fetcher.%s: enabled without boards", src.name))
		}
		for i, b := range src.cfg.Boards {
			if strings.TrimSpace(b.Token) == "" {
				errs = append(errs, fmt.Errorf("fetcher.%s.boards[%d]: token is required", src.name, i))
			}
		}
	}
	if enabled == 0 {
		errs = append(errs, errors.New("fetcher: no source enabled"))
	}
	return errs
}
