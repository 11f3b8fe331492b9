package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Ingest   IngestConfig   `yaml:"ingest"`
	LLM      LLMConfig      `yaml:"llm"`
	Reader   ReaderConfig   `yaml:"reader"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	Mode           string   `yaml:"mode"`            // debug, release
	TrustedProxies []string `yaml:"trusted_proxies"` // 为空时不信任 X-Forwarded-For
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type IngestConfig struct {
	APIKey          string          `yaml:"api_key"`
	Schedule        string          `yaml:"schedule"` // cron表达式,为空则不自动抓取
	FetchTimeout    time.Duration   `yaml:"fetch_timeout"`
	MaxItemsPerFeed int             `yaml:"max_items_per_feed"`
	Gatekeeper      bool            `yaml:"gatekeeper"` // 摘要前先让模型筛选
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	Window time.Duration `yaml:"window"`
	Max    int           `yaml:"max"`
}

type LLMConfig struct {
	ApiURL  string        `yaml:"api_url"`
	ApiKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type ReaderConfig struct {
	CacheMaxAge time.Duration `yaml:"cache_max_age"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "3000",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Path: "data/news.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Ingest: IngestConfig{
			Schedule:        "0 * * * *", // 每小时
			FetchTimeout:    10 * time.Second,
			MaxItemsPerFeed: 5,
			RateLimit: RateLimitConfig{
				Window: time.Minute,
				Max:    5,
			},
		},
		LLM: LLMConfig{
			ApiURL:  "https://api.deepseek.com",
			Model:   "deepseek-chat",
			Timeout: 30 * time.Second,
		},
		Reader: ReaderConfig{
			CacheMaxAge: 5 * time.Minute,
		},
	}
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	// 如果配置文件存在,读取配置
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}

			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", configPath, err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFiles .env.local 优先于 .env,文件不存在时忽略
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// 环境变量覆盖配置
func applyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}

	if mode := os.Getenv("GIN_MODE"); mode != "" {
		cfg.Server.Mode = mode
	}

	if proxies := os.Getenv("TRUSTED_PROXIES"); proxies != "" {
		cfg.Server.TrustedProxies = splitList(proxies)
	}

	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if key := os.Getenv("INGEST_API_KEY"); key != "" {
		cfg.Ingest.APIKey = key
	}

	if schedule, ok := os.LookupEnv("INGEST_SCHEDULE"); ok {
		cfg.Ingest.Schedule = schedule
	}

	if gate := os.Getenv("INGEST_GATEKEEPER"); gate != "" {
		if v, err := strconv.ParseBool(gate); err == nil {
			cfg.Ingest.Gatekeeper = v
		}
	}

	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		cfg.LLM.ApiKey = key
	}

	if url := os.Getenv("LLM_API_URL"); url != "" {
		cfg.LLM.ApiURL = url
	}

	if model := os.Getenv("LLM_MODEL"); model != "" {
		cfg.LLM.Model = model
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) validate() error {
	if c.Ingest.FetchTimeout <= 0 {
		return fmt.Errorf("ingest.fetch_timeout must be positive")
	}
	if c.Ingest.MaxItemsPerFeed <= 0 {
		return fmt.Errorf("ingest.max_items_per_feed must be positive")
	}
	if c.Ingest.RateLimit.Window <= 0 || c.Ingest.RateLimit.Max <= 0 {
		return fmt.Errorf("ingest.rate_limit window and max must be positive")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive")
	}
	return nil
}

// GetServerAddress 获取服务器监听地址
func (c *Config) GetServerAddress() string {
	// 如果端口是纯数字,加上冒号前缀
	if _, err := strconv.Atoi(c.Server.Port); err == nil {
		return ":" + c.Server.Port
	}
	return c.Server.Port
}
