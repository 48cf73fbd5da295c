// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Константы окружений.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Драйверы хранилища.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// minProdSecretLen - минимальная длина ключа подписи в prod.
const minProdSecretLen = 32

var (
	// ErrEmptySecret - не задан SIGNING_SECRET.
	ErrEmptySecret = errors.New("signing secret is required")
	// ErrShortSecret - ключ подписи слишком короткий для prod.
	ErrShortSecret = errors.New("signing secret is too short for prod")
	// ErrUnsupportedAlgorithm - алгоритм подписи не из семейства HMAC.
	ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")
	// ErrNegativeTTL - отрицательный TTL токена.
	ErrNegativeTTL = errors.New("token ttl must not be negative")
	// ErrNoDatabaseURL - выбран postgres, но DATABASE_URL пуст.
	ErrNoDatabaseURL = errors.New("database url is required for postgres driver")
	// ErrUnknownDriver - неизвестный драйвер хранилища.
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Config - корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Auth      AuthConfig      `yaml:"auth"`
	Cookie    CookieConfig    `yaml:"cookie"`
	DB        DBConfig        `yaml:"db"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
}

// HTTPConfig - публичный HTTP-сервер.
// TrustProxyHeaders включает чтение адреса клиента из X-Forwarded-For/X-Real-IP.
// Включать только за доверенным прокси: иначе адрес подделывается заголовком.
type HTTPConfig struct {
	Host              string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port              string `yaml:"port" env:"HTTP_PORT" env-default:"8000"`
	TrustProxyHeaders bool   `yaml:"trust_proxy_headers" env:"HTTP_TRUST_PROXY_HEADERS"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

// MetricsConfig - отдельный HTTP для Prometheus и health-проб.
type MetricsConfig struct {
	Host string `yaml:"host" env:"METRICS_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"METRICS_PORT" env-default:"9100"`
}

// Addr возвращает адрес в формате host:port.
func (m MetricsConfig) Addr() string { return net.JoinHostPort(m.Host, m.Port) }

// AuthConfig содержит параметры выпуска и валидации токенов.
type AuthConfig struct {
	SigningSecret         string `yaml:"signing_secret" env:"SIGNING_SECRET" env-required:"true"`
	AccessTokenTTLMinutes int    `yaml:"access_token_ttl_minutes" env:"ACCESS_TOKEN_TTL_MINUTES" env-default:"30"`
	RefreshTokenTTLDays   int    `yaml:"refresh_token_ttl_days" env:"REFRESH_TOKEN_TTL_DAYS" env-default:"30"`
	SignatureAlgorithm    string `yaml:"signature_algorithm" env:"SIGNATURE_ALGORITHM" env-default:"HS256"`
}

// AccessTTL - время жизни access-токена.
func (a AuthConfig) AccessTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTTL - время жизни refresh-токена.
func (a AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(a.RefreshTokenTTLDays) * 24 * time.Hour
}

// CookieConfig - параметры cookie с refresh-токеном.
type CookieConfig struct {
	Name     string `yaml:"name" env:"REFRESH_COOKIE_NAME" env-default:"refresh_token"`
	Path     string `yaml:"path" env:"REFRESH_COOKIE_PATH" env-default:"/"`
	Domain   string `yaml:"domain" env:"REFRESH_COOKIE_DOMAIN"`
	Secure   bool   `yaml:"secure" env:"REFRESH_COOKIE_SECURE" env-default:"false"`
	SameSite string `yaml:"same_site" env:"REFRESH_COOKIE_SAME_SITE" env-default:"lax"`
}

// DBConfig - настройки хранилища.
type DBConfig struct {
	Driver      string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL"`
	SkipMigrate bool   `yaml:"skip_migrate" env:"DB_SKIP_MIGRATE"`
}

// RedisConfig - Redis для распределённого rate limit. Пустой URL - лимитер в памяти процесса.
type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
}

// RateLimitConfig - ограничение частоты запросов к /login/*.
type RateLimitConfig struct {
	Disabled bool          `yaml:"disabled" env:"RATE_LIMIT_DISABLED"`
	Requests int           `yaml:"requests" env:"RATE_LIMIT_REQUESTS" env-default:"10"`
	Window   time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW" env-default:"1m"`
}

// CORSConfig - разрешённые источники для браузерных клиентов.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:","`
}

// TimeoutConfig - таймауты сервиса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
}

// Validate проверяет согласованность значений после загрузки.
func (c *Config) Validate() error {
	const op = "config.Validate"

	secret := strings.TrimSpace(c.Auth.SigningSecret)
	if secret == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptySecret)
	}

	if c.Env == EnvProd && len(secret) < minProdSecretLen {
		return fmt.Errorf("%s: %w", op, ErrShortSecret)
	}

	switch c.Auth.SignatureAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("%s: %w: %q", op, ErrUnsupportedAlgorithm, c.Auth.SignatureAlgorithm)
	}

	if c.Auth.AccessTokenTTLMinutes < 0 || c.Auth.RefreshTokenTTLDays < 0 {
		return fmt.Errorf("%s: %w", op, ErrNegativeTTL)
	}

	switch c.DB.Driver {
	case DriverPostgres:
		if c.DB.DatabaseURL == "" {
			return fmt.Errorf("%s: %w", op, ErrNoDatabaseURL)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("%s: %w: %q", op, ErrUnknownDriver, c.DB.Driver)
	}

	return nil
}

// MustLoad - обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// После чтения файла ENV-переменные накладываются поверх значений из YAML,
// затем выполняется Validate.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func read(path string) (*Config, error) {
	var cfg Config

	// чтение файла + overlay ENV.
	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	// 1) Явный путь.
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return &cfg, nil
}
