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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/matthewgall/alditalk"
)

type options struct {
	configPath string
	envFile    string
	username   string
	password   string
	debug      bool
	logFormat  string
	timezone   string

	daemon    bool
	webUI     bool
	webPort   int
	interval  int
	redisAddr string
	jsonOut   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "alditalk",
		Short: "Read balance, data volume and billing cycle of an ALDI TALK prepaid account",
		Long: `alditalk logs into the ALDI TALK customer portal and reports the account
balance, the remaining and total data volume and the billing cycle dates.

Without --daemon it prints one snapshot and exits. With --daemon it refreshes
on an interval and can serve a JSON API and Prometheus metrics (--web).`,
		Version:      alditalk.GetVersion(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cmd.OutOrStdout(), cfg, opts.jsonOut)
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("alditalk %s\nUser-Agent: %s\n", alditalk.GetVersion(), alditalk.GetUserAgent()))

	persistent := root.PersistentFlags()
	persistent.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	persistent.StringVar(&opts.envFile, "env-file", ".env", "Optional file with ALDITALK_* variables")
	persistent.StringVar(&opts.username, "username", "", "ALDI TALK phone number (or ALDITALK_USERNAME)")
	persistent.StringVar(&opts.password, "password", "", "ALDI TALK password (or ALDITALK_PASSWORD)")
	persistent.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	persistent.StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")
	persistent.StringVar(&opts.timezone, "timezone", "", "Time zone of the portal dates (default: local)")

	flags := root.Flags()
	flags.BoolVar(&opts.daemon, "daemon", false, "Run in daemon mode (continuous monitoring)")
	flags.BoolVar(&opts.webUI, "web", false, "Enable the JSON API and /metrics (daemon mode only)")
	flags.IntVar(&opts.webPort, "port", DefaultWebPort, "Web server port")
	flags.IntVar(&opts.interval, "interval", int(DefaultCheckInterval/time.Minute), "Minutes between updates in daemon mode")
	flags.StringVar(&opts.redisAddr, "redis-addr", "", "Publish snapshots to redis at host:port")
	flags.BoolVar(&opts.jsonOut, "json", false, "Print the snapshot as JSON")

	root.AddCommand(newCheckCommand(opts))
	return root
}

func newCheckCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:          "check",
		Short:        "Log in once and report whether the credentials are accepted",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runCheck(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
}

// loadConfig layers the config file, .env and ALDITALK_* variables and the
// flags that were set explicitly, in that order
func loadConfig(cmd *cobra.Command, opts *options) (*Config, error) {
	if err := LoadDotEnv(opts.envFile); err != nil {
		return nil, err
	}

	cfg, err := LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading config file: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	applyFlags(cmd, opts, cfg)
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, opts *options, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("username") {
		cfg.Username = opts.username
	}
	if flags.Changed("password") {
		cfg.Password = opts.password
	}
	if flags.Changed("debug") {
		cfg.Debug = opts.debug
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = opts.logFormat
	}
	if flags.Changed("timezone") {
		cfg.Timezone = opts.timezone
	}
	if flags.Changed("daemon") {
		cfg.Daemon = opts.daemon
	}
	if flags.Changed("web") {
		cfg.WebUI = opts.webUI
	}
	if flags.Changed("port") {
		cfg.WebPort = opts.webPort
	}
	if flags.Changed("interval") {
		cfg.CheckInterval = opts.interval
	}
	if flags.Changed("redis-addr") {
		cfg.RedisAddr = opts.redisAddr
	}
}

func newLogger(cfg *Config) *alditalk.Logger {
	return alditalk.NewLoggerTo(os.Stderr, cfg.Debug, cfg.LogFormat == "json")
}

func newClient(cfg *Config, logger *alditalk.Logger) (*alditalk.AccountClient, error) {
	portal, err := cfg.PortalConfig()
	if err != nil {
		return nil, err
	}
	credentials := alditalk.Credentials{Username: cfg.Username, Password: cfg.Password}
	return alditalk.NewWithConfig(credentials, portal, logger, cfg.Debug)
}

func run(ctx context.Context, out io.Writer, cfg *Config, jsonOut bool) error {
	logger := newLogger(cfg)
	logger.Info("Starting ALDI TALK account monitor",
		"version", alditalk.GetVersion(),
		"username", alditalk.MaskUsername(cfg.Username))

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	monitor := NewUsageMonitor(client, cfg.Username, logger)
	monitor.SetCheckInterval(cfg.Interval())

	if cfg.RedisAddr != "" {
		publisher, err := NewRedisPublisher(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, alditalk.MaskUsername(cfg.Username))
		if err != nil {
			return err
		}
		defer publisher.Close()
		monitor.SetPublisher(publisher)
		logger.Info("Publishing snapshots to redis", "addr", cfg.RedisAddr, "channel", RedisChannel)
	}

	if cfg.Daemon {
		if cfg.WebUI {
			monitor.EnableWebUI(cfg.WebPort)
			logger.Info("Web API enabled", "url", fmt.Sprintf("http://localhost:%d", cfg.WebPort))
		}
		logger.Info("Running in daemon mode - continuous monitoring")
		return monitor.Start(ctx)
	}

	logger.Info("Running in one-shot mode")
	snapshot, err := monitor.CheckOnce(ctx)
	if err != nil {
		return err
	}

	if jsonOut {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(snapshotPayload(snapshot, client.LastUpdated()))
	}
	PrintSnapshot(out, snapshot, client.LastUpdated(), time.Now())
	return nil
}

// runCheck logs in once, the way a setup wizard validates credentials
func runCheck(ctx context.Context, out io.Writer, cfg *Config) error {
	logger := newLogger(cfg)
	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	var transportErr *alditalk.TransportError
	err = client.Update(ctx)
	switch {
	case err == nil:
		PrintSuccess(out, fmt.Sprintf("Credentials accepted for %s", alditalk.MaskUsername(cfg.Username)))
		return nil
	case errors.Is(err, alditalk.ErrInvalidCredentials):
		PrintError(out, "Invalid credentials: the portal rejected the phone number or password")
	case errors.As(err, &transportErr):
		PrintError(out, "Cannot connect to the portal")
	default:
		PrintError(out, "Unexpected error")
	}
	return err
}
