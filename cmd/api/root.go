package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/decoyworks/honeypot/internal/config"
	"github.com/decoyworks/honeypot/internal/logger"
	"github.com/decoyworks/honeypot/internal/version"
)

var (
	debug bool

	// Loaded in PersistentPreRunE.
	cfg     config.Config
	rotator *lumberjack.Logger
)

var rootCmd = &cobra.Command{
	Use:           "honeypot",
	Short:         "Web deception layer that scores and blocks scanners",
	Version:       version.Full(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if debug {
			cfg.Debug = true
		}

		out := io.Writer(os.Stdout)
		if err := os.MkdirAll(cfg.LogDir, 0o755); err == nil {
			rotator = &lumberjack.Logger{
				Filename:   filepath.Join(cfg.LogDir, "honeypot.log"),
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			}
			out = io.MultiWriter(os.Stdout, rotator)
		}
		logger.Init(cfg.Debug, out)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if rotator != nil {
			return rotator.Close()
		}
		return nil
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging and verbose panic traces")
	rootCmd.AddCommand(serveCmd, unblockCmd, hashKeyCmd, geoipValidateCmd)
}
