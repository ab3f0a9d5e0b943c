package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Ledger  LedgerConfig      `yaml:"ledger"`
	History HistoryConfig     `yaml:"history"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Ledger.Validate(); err != nil {
		return err
	}
	return c.History.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level     `yaml:"log_level"`
	Services ServicesConfig `yaml:"services"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.Services.Validate()
}

// ServicesConfig holds one listen port per service endpoint. The four
// endpoints are independently addressable, mirroring a deployment where
// each service is its own process.
type ServicesConfig struct {
	Summary EndpointConfig `yaml:"summary"`
	Edit    EndpointConfig `yaml:"edit"`
	Delete  EndpointConfig `yaml:"delete"`
	Search  EndpointConfig `yaml:"search"`
}

// Validate validates every endpoint and rejects port collisions.
func (c *ServicesConfig) Validate() error {
	seen := map[int]string{}
	for _, ep := range []struct {
		name string
		cfg  EndpointConfig
	}{
		{"summary", c.Summary},
		{"edit", c.Edit},
		{"delete", c.Delete},
		{"search", c.Search},
	} {
		if err := ep.cfg.Validate(); err != nil {
			return fmt.Errorf("services.%s: %w", ep.name, err)
		}
		if other, dup := seen[ep.cfg.Port]; dup {
			return fmt.Errorf("services: %s and %s share port %d", other, ep.name, ep.cfg.Port)
		}
		seen[ep.cfg.Port] = ep.name
	}
	return nil
}

// EndpointConfig holds the HTTP configuration of one service endpoint.
type EndpointConfig struct {
	Port int `yaml:"port"`
}

// Address returns the endpoint's listen address.
func (c *EndpointConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the endpoint configuration.
func (c *EndpointConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// LedgerConfig holds the path to the ledger CSV file.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the ledger configuration.
func (c *LedgerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// HistoryConfig holds the path to the edit-history database.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the history configuration.
func (c *HistoryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values. The
// default ports match the original four-service deployment.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			Services: ServicesConfig{
				Summary: EndpointConfig{Port: 5555},
				Edit:    EndpointConfig{Port: 5556},
				Delete:  EndpointConfig{Port: 5557},
				Search:  EndpointConfig{Port: 5558},
			},
		},
		Ledger: LedgerConfig{
			Path: "./data/transactions.csv",
		},
		History: HistoryConfig{
			Path: "./data/edit_history.db",
		},
	}
}
