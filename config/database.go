package config

import "time"

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"linguavox"`
	Password string `env:"PASSWORD"                envDefault:"linguavox"`
	Name     string `env:"NAME"                    envDefault:"linguavox"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI      string `env:"URI"      envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`
}

// CacheConfig contains terminal status cache configuration (Redis-based).
type CacheConfig struct {
	// Enabled toggles the read-through status cache.
	Enabled bool `env:"CACHE_ENABLED" envDefault:"true"`

	// StatusTTL is the TTL for cached terminal status responses. Terminal
	// rows never change, so the TTL only bounds cache memory.
	StatusTTL time.Duration `env:"CACHE_STATUS_TTL" envDefault:"24h"`
}

// Sanitize applies guardrails to cache configuration values.
func (c *CacheConfig) Sanitize() {
	if c.StatusTTL <= 0 {
		c.StatusTTL = 24 * time.Hour
	}
}
