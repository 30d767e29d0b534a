// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/matthewgall/alditalk"
)

// EnvPrefix is prepended to every environment variable, e.g. ALDITALK_USERNAME
const EnvPrefix = "ALDITALK"

// Config is read from the YAML file, then from ALDITALK_* environment
// variables (ALDITALK_USERNAME, ALDITALK_CHECK_INTERVAL, ...), then from flags
type Config struct {
	Username      string `yaml:"username" validate:"required"`
	Password      string `yaml:"password" validate:"required"`
	Daemon        bool   `yaml:"daemon"`
	CheckInterval int    `yaml:"check_interval_minutes" split_words:"true" validate:"min=1,max=1440"`
	WebUI         bool   `yaml:"web_ui" split_words:"true"`
	WebPort       int    `yaml:"web_port" split_words:"true" validate:"min=1,max=65535"`
	Debug         bool   `yaml:"debug"`
	LogFormat     string `yaml:"log_format" split_words:"true" validate:"oneof=text json"`
	Timezone      string `yaml:"timezone" validate:"omitempty,timezone"`

	// Optional snapshot hand-off
	RedisAddr     string `yaml:"redis_addr" split_words:"true" validate:"omitempty,hostname_port"`
	RedisPassword string `yaml:"redis_password" split_words:"true"`
	RedisDB       int    `yaml:"redis_db" split_words:"true" validate:"min=0,max=15"`

	// Portal overrides, empty means the live portal
	LoginURL     string `yaml:"login_url" split_words:"true" validate:"omitempty,url"`
	DashboardURL string `yaml:"dashboard_url" split_words:"true" validate:"omitempty,url"`
}

// DefaultConfig returns the values used when nothing else is set
func DefaultConfig() *Config {
	return &Config{
		CheckInterval: int(DefaultCheckInterval / time.Minute),
		WebPort:       DefaultWebPort,
		LogFormat:     "text",
	}
}

func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath == "" {
		return config, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadDotEnv reads KEY=value pairs from the given files into the process
// environment. Missing files are ignored and variables that are already set
// are left alone.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from ALDITALK_* environment variables. Unset
// variables keep the current value.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

func (c *Config) ApplyDefaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = int(DefaultCheckInterval / time.Minute)
	}
	if c.WebPort <= 0 {
		c.WebPort = DefaultWebPort
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their config file name
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var problems []string

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		for _, fe := range fieldErrs {
			problems = append(problems, describeFieldError(fe))
		}
	}

	if c.WebPort > 0 && c.WebPort < 1024 {
		problems = append(problems, fmt.Sprintf("warning: port %d requires root privileges (consider using 8080 or higher)", c.WebPort))
	}

	// Logical validations
	if c.WebUI && !c.Daemon {
		problems = append(problems, "web UI requires daemon mode (use both --daemon and --web flags)")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}

	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s, got: %v", fe.Field(), fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s, got: %v", fe.Field(), fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got: %v", fe.Field(), fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be an absolute URL, got: %v", fe.Field(), fe.Value())
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port, got: %v", fe.Field(), fe.Value())
	case "timezone":
		return fmt.Sprintf("%s is not a known time zone: %v", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s failed the %s check", fe.Field(), fe.Tag())
	}
}

// Interval returns the refresh interval of the daemon
func (c *Config) Interval() time.Duration {
	return time.Duration(c.CheckInterval) * time.Minute
}

// PortalConfig builds the portal settings, applying the time zone and any
// endpoint overrides
func (c *Config) PortalConfig() (alditalk.PortalConfig, error) {
	cfg := alditalk.DefaultPortalConfig()
	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return cfg, fmt.Errorf("failed to load time zone %q: %w", c.Timezone, err)
		}
		cfg.Location = loc
	}
	if c.LoginURL != "" {
		cfg.LoginURL = c.LoginURL
	}
	if c.DashboardURL != "" {
		cfg.DashboardURL = c.DashboardURL
	}
	return cfg, nil
}
