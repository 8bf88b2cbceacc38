package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the stats service.
// Tags use mapstructure for Viper unmarshalling; every key can be set
// through an environment variable of the same name.
type ServerConfig struct {
	HTTPPort  string `mapstructure:"HTTP_PORT"`
	APIPrefix string `mapstructure:"API_PREFIX"`

	MongoURI      string        `mapstructure:"MONGO_URI"`
	MongoHost     string        `mapstructure:"MONGO_HOST"`
	MongoUsername string        `mapstructure:"MONGO_USERNAME"`
	MongoPassword string        `mapstructure:"MONGO_PASSWORD"`
	MongoTimeout  time.Duration `mapstructure:"MONGO_TIMEOUT"`

	// Administrative account. Together they also derive the token
	// signing key.
	APIUsername   string        `mapstructure:"API_USERNAME"`
	APIPassword   string        `mapstructure:"API_PASSWORD"`
	TokenValidity time.Duration `mapstructure:"TOKEN_VALIDITY"`

	Facets        []string      `mapstructure:"FACETS"`
	FacetsFile    string        `mapstructure:"FACETS_FILE"`
	FacetsURL     string        `mapstructure:"FACETS_URL"`
	FacetsFlavour string        `mapstructure:"FACETS_FLAVOUR"`
	FacetsTTL     time.Duration `mapstructure:"FACETS_TTL"`
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`

	DemoNamespace string `mapstructure:"DEMO_NAMESPACE"`
	AuditLog      bool   `mapstructure:"AUDIT_LOG"`

	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogPretty       bool   `mapstructure:"LOG_PRETTY"`
	Debug           bool   `mapstructure:"DEBUG"`
	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*ServerConfig, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/stats-service/")
	v.AddConfigPath("$HOME/.stats-service")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// a missing file means defaults and environment only
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("API_PREFIX", "/api/storage")
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_HOST", "localhost:27017")
	v.SetDefault("MONGO_USERNAME", "")
	v.SetDefault("MONGO_PASSWORD", "")
	v.SetDefault("MONGO_TIMEOUT", 5*time.Second)
	v.SetDefault("API_USERNAME", "stats")
	v.SetDefault("API_PASSWORD", "")
	v.SetDefault("TOKEN_VALIDITY", 24*time.Hour)
	v.SetDefault("FACETS", []string{})
	v.SetDefault("FACETS_FILE", "")
	v.SetDefault("FACETS_URL", "")
	v.SetDefault("FACETS_FLAVOUR", "freva")
	v.SetDefault("FACETS_TTL", 10*time.Minute)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("DEMO_NAMESPACE", "example-project")
	v.SetDefault("AUDIT_LOG", true)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("DEBUG", false)
	v.SetDefault("OTEL_SERVICE_NAME", "stats-service")
}

// MongoURL returns MONGO_URI when set, otherwise a URI built from host
// and credentials.
func (c *ServerConfig) MongoURL() string {
	if c.MongoURI != "" {
		return c.MongoURI
	}

	u := url.URL{Scheme: "mongodb", Host: c.MongoHost}
	if c.MongoUsername != "" {
		u.User = url.UserPassword(c.MongoUsername, c.MongoPassword)
	}
	return u.String()
}

// Validate reports settings the service cannot start without.
func (c *ServerConfig) Validate() error {
	var errs []error
	if c.APIUsername == "" {
		errs = append(errs, errors.New("API_USERNAME must be set"))
	}
	if c.APIPassword == "" {
		errs = append(errs, errors.New("API_PASSWORD must be set"))
	}
	if c.TokenValidity <= 0 {
		errs = append(errs, errors.New("TOKEN_VALIDITY must be positive"))
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		errs = append(errs, errors.New("API_PREFIX must start with /"))
	}
	return errors.Join(errs...)
}
