// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ManuGH/tunepipe/internal/config"
	xglog "github.com/ManuGH/tunepipe/internal/log"
	"github.com/ManuGH/tunepipe/internal/version"
	"github.com/spf13/cobra"
)

// cli holds state shared by all subcommands once the root pre-run has
// loaded the configuration.
type cli struct {
	configPath    string
	logLevel      string
	metricsListen string

	cfg      config.AppConfig
	activity io.Closer
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "tunepipe",
		Short:         "Download or stream remote audio",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version.Version, version.Commit, version.Date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.activity != nil {
				return c.activity.Close()
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "path to config file (YAML)")
	flags.StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&c.metricsListen, "metrics-listen", "", "serve prometheus metrics on this address")

	root.AddCommand(
		newDownloadCmd(c),
		newStreamCmd(c),
		newPlayCmd(c),
		newLibraryCmd(c),
		newCoverCmd(c),
		newCheckCmd(c),
	)
	return root
}

// load resolves the config path, loads the configuration with precedence
// ENV > file > defaults, and reconfigures the logger.
func (c *cli) load(cmd *cobra.Command) error {
	path := strings.TrimSpace(c.configPath)
	if path == "" {
		dataDir := config.ParseString(config.EnvDataDir, config.Defaults().DataDir)
		auto := config.DefaultConfigPath(dataDir)
		if _, err := os.Stat(auto); err == nil {
			path = auto
		}
	}

	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if c.metricsListen != "" {
		cfg.Metrics.Listen = c.metricsListen
	}
	c.cfg = cfg

	logCfg := xglog.Config{
		Level:   cfg.LogLevel,
		Output:  cmd.ErrOrStderr(),
		Service: "tunepipe",
		Version: cfg.Version,
	}
	if cfg.ActivityLog != "" {
		f, err := xglog.OpenActivityLog(cfg.ActivityLog)
		if err != nil {
			return err
		}
		c.activity = f
		logCfg.Activity = f
	}
	xglog.Reconfigure(logCfg)

	source := "defaults"
	if path != "" {
		source = path
	}
	logger := xglog.WithComponent("cli")
	logger.Debug().
		Str("event", "config.loaded").
		Str("source", source).
		Str("library_dir", cfg.LibraryDir).
		Msg("configuration loaded")
	return nil
}
