package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации роутера задач.
type Config struct {
	GitHub      GitHubConfig      `mapstructure:"github"`
	Agent       AgentConfig       `mapstructure:"agent"`
	Reliability ReliabilityConfig `mapstructure:"reliability"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Logger      LoggerConfig      `mapstructure:"logger"`
}

// GitHubConfig описывает доступ к трекеру задач.
type GitHubConfig struct {
	Token          string        `mapstructure:"token"`      // GITHUB_TOKEN
	Repository     string        `mapstructure:"repository"` // GITHUB_REPOSITORY, owner/repo
	APIURL         string        `mapstructure:"api_url"`    // GITHUB_API_URL (GHES)
	AppID          string        `mapstructure:"app_id"`
	InstallationID string        `mapstructure:"installation_id"`
	AppKeyPath     string        `mapstructure:"app_private_key_path"`
	WebhookSecret  string        `mapstructure:"webhook_secret"`
	Timeout        time.Duration `mapstructure:"timeout"`
	AppPrivateKey  []byte
}

// AgentConfig — пул агентов и чтение нагрузки.
type AgentConfig struct {
	PoolConfig       string `mapstructure:"pool_config"` // AGENT_POOL_CONFIG, JSON
	WorkloadPageSize int    `mapstructure:"workload_page_size"`
	WorkloadMaxPages int    `mapstructure:"workload_max_pages"`
}

// ReliabilityConfig настраивает обертку над вызовами трекера.
type ReliabilityConfig struct {
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
	RetryAttempts  uint          `mapstructure:"retry_attempts"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Настройки Circuit Breaker для GitHub API
	CBMaxRequests         uint32        `mapstructure:"cb_max_requests"`
	CBInterval            time.Duration `mapstructure:"cb_interval"`
	CBTimeout             time.Duration `mapstructure:"cb_timeout"`
	CBConsecutiveFailures uint32        `mapstructure:"cb_consecutive_failures"`
}

// ServerConfig описывает HTTP-сервер dispatcher.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PipelineTimeout time.Duration `mapstructure:"pipeline_timeout"`
}

// DatabaseConfig описывает подключение к PostgreSQL (журнал решений).
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int    `mapstructure:"max_conns"`
}

// RedisConfig описывает подключение к Redis (блокировки по задаче).
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// AuthConfig — публичный ключ для операторских токенов (RS256).
type AuthConfig struct {
	PublicKeyPath string        `mapstructure:"public_key_path"`
	Issuer        string        `mapstructure:"issuer"` // пусто — iss не проверяется
	Leeway        time.Duration `mapstructure:"leeway"`
	PublicKey     []byte
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	return loadConfig(viper.New())
}

func loadConfig(v *viper.Viper) (*Config, error) {
	// 1. Настройка поиска файла
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// 2. ENV перекрывает конфиг: GITHUB_TOKEN перекроет github.token
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Дефолты (заодно регистрируют ключи для AutomaticEnv при Unmarshal)
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Ключи: PEM прямо в ENV (Docker/K8s/Actions secrets) или файл по пути
	cfg.GitHub.AppPrivateKey = loadKeyResource(cfg.GitHub.AppKeyPath, "GITHUB_APP_PRIVATE_KEY_DATA")
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("github.token", "")
	v.SetDefault("github.repository", "")
	v.SetDefault("github.api_url", "https://api.github.com")
	v.SetDefault("github.app_id", "")
	v.SetDefault("github.installation_id", "")
	v.SetDefault("github.app_private_key_path", "")
	v.SetDefault("github.webhook_secret", "")
	v.SetDefault("github.timeout", 15*time.Second)

	v.SetDefault("agent.pool_config", "")
	v.SetDefault("agent.workload_page_size", 100)
	v.SetDefault("agent.workload_max_pages", 10)

	v.SetDefault("reliability.rate_limit", 10.0)
	v.SetDefault("reliability.rate_burst", 5)
	v.SetDefault("reliability.retry_attempts", 3)
	v.SetDefault("reliability.retry_max_delay", 30*time.Second)
	v.SetDefault("reliability.request_timeout", 10*time.Second)
	v.SetDefault("reliability.cb_max_requests", 3)
	v.SetDefault("reliability.cb_interval", 5*time.Second)
	v.SetDefault("reliability.cb_timeout", 30*time.Second)
	v.SetDefault("reliability.cb_consecutive_failures", 5)

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.pipeline_timeout", 45*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 5)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", 2*time.Minute)

	v.SetDefault("auth.public_key_path", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.leeway", 30*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// loadKeyResource — ключ из ENV (PEM целиком) или из файла по пути.
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
