// Package config loads the qbankd configuration from a YAML file with
// ${VAR} environment expansion. Every field falls back to a sensible
// default so a bare `qbankd` starts against a local Mongo.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Mongo     MongoConfig      `yaml:"mongo"`
	Auth      AuthConfig       `yaml:"auth"`
	SeedUsers []SeedUserConfig `yaml:"seed_users"`
}

// SeedUserConfig describes an account created at startup when missing.
type SeedUserConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type ServerConfig struct {
	Addr          string `yaml:"addr"`
	SecureCookies bool   `yaml:"secure_cookies"`
}

type MongoConfig struct {
	URI                 string `yaml:"uri"`
	Database            string `yaml:"database"`
	UsersCollection     string `yaml:"users_collection"`
	QuestionsCollection string `yaml:"questions_collection"`
	MistakesCollection  string `yaml:"mistakes_collection"`
	SettingsCollection  string `yaml:"settings_collection"`
}

type AuthConfig struct {
	JWTSecret             string `yaml:"jwt_secret"`
	Issuer                string `yaml:"issuer"`
	AdminRegistrationCode string `yaml:"admin_registration_code"`
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnvVars(in []byte) []byte {
	return envVarPattern.ReplaceAllFunc(in, func(m []byte) []byte {
		name := envVarPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Load reads the config file at path. An empty path yields defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(expandEnvVars(data), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Mongo.URI == "" {
		c.Mongo.URI = envOr("MONGODB_URI", "mongodb://localhost:27017")
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "questionbank"
	}
	if c.Mongo.UsersCollection == "" {
		c.Mongo.UsersCollection = "users"
	}
	if c.Mongo.QuestionsCollection == "" {
		c.Mongo.QuestionsCollection = "questions"
	}
	if c.Mongo.MistakesCollection == "" {
		c.Mongo.MistakesCollection = "mistakes"
	}
	if c.Mongo.SettingsCollection == "" {
		c.Mongo.SettingsCollection = "systemsettings"
	}
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "question-bank"
	}
	if c.Auth.AdminRegistrationCode == "" {
		c.Auth.AdminRegistrationCode = os.Getenv("ADMIN_REGISTRATION_CODE")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Validate rejects configurations the server must not start with.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (or JWT_SECRET) is required")
	}
	return nil
}
