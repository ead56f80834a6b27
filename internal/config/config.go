package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Registry RegistryConfig
}

type ServerConfig struct {
	Port string
	Host string
	// BaseURL is the externally reachable address of this API. The
	// registry worker logs in and fetches events through it.
	BaseURL string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// RegistryConfig configures forwarding of events to the external
// device registry (GRD).
type RegistryConfig struct {
	// Enabled is the master switch; when false nothing is forwarded.
	Enabled bool
	// Debug makes the sender log the would-be request instead of
	// performing it.
	Debug bool
	// Domain is the registry base URL, e.g. https://sandbox.ereuse.org/
	Domain string
	// AgentUser / AgentPassword authenticate outbound registry calls.
	AgentUser     string
	AgentPassword string
	// Account is the service account the worker provisions and logs in
	// with against the internal API.
	Account ServiceAccountConfig
}

// ServiceAccountConfig is the credential block for the synthetic
// account used by the registry worker.
type ServiceAccountConfig struct {
	Email    string
	Password string
	Name     string
}

func Load() (*Config, error) {
	var missing []string

	get := func(key string) string {
		val := os.Getenv(key)
		if val == "" {
			missing = append(missing, key)
		}
		return val
	}

	config := &Config{
		Server: ServerConfig{
			Port:    get("SERVER_PORT"),
			Host:    get("SERVER_HOST"),
			BaseURL: get("SERVER_BASE_URL"),
		},
		Database: DatabaseConfig{
			Host:     get("DB_HOST"),
			Port:     get("DB_PORT"),
			User:     get("DB_USER"),
			Password: get("DB_PASSWORD"),
			DBName:   get("DB_NAME"),
			SSLMode:  get("DB_SSLMODE"),
		},
		SMTP: SMTPConfig{
			Host:     get("SMTP_HOST"),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     get("SMTP_FROM"),
		},
		Registry: RegistryConfig{
			Enabled:       parseBool(os.Getenv("GRD_ENABLED"), true),
			Debug:         parseBool(os.Getenv("GRD_DEBUG"), false),
			Domain:        os.Getenv("GRD_DOMAIN"),
			AgentUser:     os.Getenv("GRD_AGENT_USER"),
			AgentPassword: os.Getenv("GRD_AGENT_PASSWORD"),
			Account: ServiceAccountConfig{
				Email:    os.Getenv("GRD_ACCOUNT_EMAIL"),
				Password: os.Getenv("GRD_ACCOUNT_PASSWORD"),
				Name:     os.Getenv("GRD_ACCOUNT_NAME"),
			},
		},
	}

	smtpPort := os.Getenv("SMTP_PORT")
	if smtpPort == "" {
		missing = append(missing, "SMTP_PORT")
	} else {
		port, err := strconv.Atoi(smtpPort)
		if err != nil {
			return nil, fmt.Errorf("SMTP_PORT must be an integer: %w", err)
		}
		config.SMTP.Port = port
	}

	// Registry settings are only required when forwarding is on
	if config.Registry.Enabled {
		for key, val := range map[string]string{
			"GRD_DOMAIN":           config.Registry.Domain,
			"GRD_ACCOUNT_EMAIL":    config.Registry.Account.Email,
			"GRD_ACCOUNT_PASSWORD": config.Registry.Account.Password,
		} {
			if val == "" {
				missing = append(missing, key)
			}
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return config, nil
}

// ConnectionString returns a DSN string for GORM
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode)
}

// MigrationURL returns a postgres:// URL for golang-migrate
func (c *DatabaseConfig) MigrationURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

func parseBool(val string, def bool) bool {
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		return def
	}
	return parsed
}
