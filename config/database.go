package config

import "time"

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"vialytics"`
	Password string `env:"PASSWORD" envDefault:"vialytics"`
	Name     string `env:"NAME"     envDefault:"vialytics"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration for the price cache.
type RedisConfig struct {
	// Enabled turns the price cache on. When false the oracle fetches the
	// upstream price every time it is asked.
	Enabled  bool   `env:"ENABLED"  envDefault:"false"`
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`

	// PriceTTL is the TTL for the cached native asset price.
	PriceTTL time.Duration `env:"PRICE_TTL" envDefault:"5m"`
}
