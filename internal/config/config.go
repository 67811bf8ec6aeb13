package config

import (
	"fmt"
	"log"
	"time"

	"campaign-server/internal/utils"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию для Campaign Server
type Config struct {
	// Настройки сервера
	Port     string `envconfig:"CAMPAIGN_SERVER_PORT" default:"8084"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Настройки PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" required:"true"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" required:"true"`
	DBName        string        `envconfig:"DB_NAME" required:"true"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	// Секретное поле БЕЗ envconfig тега
	DBPassword string

	// Настройки Redis (ключи идемпотентности + rate limiter)
	RedisAddr      string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB        int           `envconfig:"REDIS_DB" default:"0"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	// Секретное поле БЕЗ envconfig тега
	RedisPassword string

	// Настройки RabbitMQ
	RabbitMQURL string `envconfig:"RABBITMQ_URL" required:"true"`

	// Таблица стоимости боевых характеристик: имя -> жетонов за шаг.
	// Формат envconfig: "attack:3,defense:2".
	CombatCostTable map[string]int `envconfig:"COMBAT_COST_TABLE" default:"attack:3,defense:2,reaction:2,speed:1"`

	// Хранилище ассетов персонажей (портреты, токены)
	AssetBasePath string `envconfig:"ASSET_BASE_PATH" default:"/data/character-assets"`
	AssetBaseURL  string `envconfig:"ASSET_BASE_URL" default:"/assets/characters"`

	// Rate limiter на мутирующих маршрутах
	RateLimitPerSecond int `envconfig:"RATE_LIMIT_PER_SECOND" default:"10"`

	// CORS
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Настройки JWT (для проверки токена пользователя в middleware)
	// Секретное поле БЕЗ envconfig тега
	JWTSecret string
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL
func (c *Config) GetDSN() string {
	// Пароль теперь в c.DBPassword
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig загружает конфигурацию из переменных окружения и секретов
func LoadConfig() (*Config, error) {
	var cfg Config
	// Загружаем НЕсекретные переменные
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации campaign-server: %w", err)
	}

	// Загружаем ОБЯЗАТЕЛЬНЫЕ секреты
	var loadErr error
	cfg.DBPassword, loadErr = utils.ReadSecret("db_password")
	if loadErr != nil {
		return nil, loadErr
	}

	cfg.JWTSecret, loadErr = utils.ReadSecret("jwt_secret")
	if loadErr != nil {
		return nil, loadErr
	}

	// Пароль Redis опционален (в dev его обычно нет)
	cfg.RedisPassword, loadErr = utils.ReadSecret("redis_password")
	if loadErr != nil {
		log.Printf("Секрет redis_password не найден, продолжаем без пароля Redis")
		cfg.RedisPassword = ""
	}

	log.Printf("Конфигурация Campaign Server загружена (секреты из файлов):")
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  LogLevel: %s", cfg.LogLevel)
	log.Printf("  DB DSN: postgres://%s:***@%s:%s/%s?sslmode=%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
	log.Printf("  DB Max Conns: %d", cfg.DBMaxConns)
	log.Printf("  Redis Addr: %s (db %d)", cfg.RedisAddr, cfg.RedisDB)
	log.Printf("  Idempotency TTL: %v", cfg.IdempotencyTTL)
	log.Printf("  RabbitMQ URL: %s", cfg.RabbitMQURL)
	log.Printf("  Combat Cost Table: %v", cfg.CombatCostTable)
	log.Printf("  Asset Base Path: %s", cfg.AssetBasePath)
	log.Println("  JWT Secret: [ЗАГРУЖЕН]")

	return &cfg, nil
}
