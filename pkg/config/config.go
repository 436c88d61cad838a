// Package config resolves the bridge configuration from the process
// environment once at startup.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/ozgurkarahan/get-started-with-ai-agents/pkg/env"
)

// Config is the fully resolved startup configuration.
type Config struct {
	ProjectEndpoint string
	AgentID         string
	AgentName       string
	APIVersion      string
	TokenScope      string

	BaseURL         string
	Host            string
	Port            string
	Streaming       bool
	MCPEnabled      bool
	ShutdownTimeout time.Duration
	LogLevel        string

	TracingEnabled bool
	ServiceName    string
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Variables that are already set are left alone and missing
// files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// Load reads the registered variables. It does not validate; call Validate
// before relying on the result.
func Load() Config {
	return Config{
		ProjectEndpoint: ProjectEndpoint.Get(),
		AgentID:         AgentID.Get(),
		AgentName:       AgentName.Get(),
		APIVersion:      APIVersion.Get(),
		TokenScope:      TokenScope.Get(),
		BaseURL:         BaseURL.Get(),
		Host:            Host.Get(),
		Port:            Port.Get(),
		Streaming:       Streaming.Get(),
		MCPEnabled:      MCPEnabled.Get(),
		ShutdownTimeout: ShutdownTimeout.Get(),
		LogLevel:        LogLevel.Get(),
		TracingEnabled:  TracingEnabled.Get(),
		ServiceName:     ServiceName.Get(),
	}
}

type stringField struct {
	v     env.StringVar
	value string
}

func (c Config) stringFields() []stringField {
	return []stringField{
		{ProjectEndpoint, c.ProjectEndpoint},
		{AgentID, c.AgentID},
		{AgentName, c.AgentName},
		{APIVersion, c.APIVersion},
		{TokenScope, c.TokenScope},
		{BaseURL, c.BaseURL},
		{Host, c.Host},
		{Port, c.Port},
		{LogLevel, c.LogLevel},
		{ServiceName, c.ServiceName},
	}
}

// Validate reports the first configuration problem that would prevent startup.
func (c Config) Validate() error {
	for _, field := range c.stringFields() {
		if field.v.Required() && field.value == "" {
			return fmt.Errorf("%s is required", field.v.Name())
		}
	}
	if err := validateURL(c.ProjectEndpoint); err != nil {
		return fmt.Errorf("%s: %w", ProjectEndpoint.Name(), err)
	}
	if c.AgentID == "" && c.AgentName == "" {
		return fmt.Errorf("either %s or %s must be set", AgentID.Name(), AgentName.Name())
	}
	if err := validateURL(c.BaseURL); err != nil {
		return fmt.Errorf("%s: %w", BaseURL.Name(), err)
	}
	if c.Port == "" {
		return fmt.Errorf("%s must not be empty", Port.Name())
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%s must be positive", ShutdownTimeout.Name())
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q in %q", u.Scheme, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}
