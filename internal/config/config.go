package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                 string   `mapstructure:"PORT"`
	Env                  string   `mapstructure:"ENV"`
	DatabaseURL          string   `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32    `mapstructure:"DB_MIN_CONNS"`
	Neo4jURL             string   `mapstructure:"NEO4J_URL"`
	Neo4jUser            string   `mapstructure:"NEO4J_USER"`
	Neo4jPassword        string   `mapstructure:"NEO4J_PASSWORD"`
	AMQPURL              string   `mapstructure:"AMQP_URL"`
	UsersAPIHost         string   `mapstructure:"USERS_API_HOST"`
	MigrationJWTSecret   string   `mapstructure:"MIGRATION_JWT_SECRET"`
	MigrationJWTIssuer   string   `mapstructure:"MIGRATION_JWT_ISSUER"`
	MigrationJWTAudience string   `mapstructure:"MIGRATION_JWT_AUDIENCE"`
	MigrationBatchSize   int      `mapstructure:"MIGRATION_BATCH_SIZE"`
	CORSOrigins          []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MIGRATION_BATCH_SIZE", 100)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("NEO4J_URL")
	v.BindEnv("NEO4J_USER")
	v.BindEnv("NEO4J_PASSWORD")
	v.BindEnv("AMQP_URL")
	v.BindEnv("USERS_API_HOST")
	v.BindEnv("MIGRATION_JWT_SECRET")
	v.BindEnv("MIGRATION_JWT_ISSUER")
	v.BindEnv("MIGRATION_JWT_AUDIENCE")
	v.BindEnv("MIGRATION_BATCH_SIZE")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks settings shared by every command.
func (c *Config) Validate() error {
	if c.MigrationBatchSize <= 0 {
		return fmt.Errorf("MIGRATION_BATCH_SIZE must be positive, got %d", c.MigrationBatchSize)
	}
	if c.UsersAPIHost != "" && c.MigrationJWTSecret == "" {
		return fmt.Errorf("MIGRATION_JWT_SECRET is required when USERS_API_HOST is set")
	}
	return nil
}

// ValidateLegacy checks the settings required to run a legacy-store migration.
func (c *Config) ValidateLegacy() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Neo4jURL == "" {
		return fmt.Errorf("NEO4J_URL is required to run a legacy migration")
	}
	return nil
}
