package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/decoyworks/honeypot/internal/database"
	"github.com/decoyworks/honeypot/internal/services"
)

var unblockCmd = &cobra.Command{
	Use:   "unblock <key>",
	Short: "Remove the block keyed by a fingerprint or IP address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}

		removed, err := services.NewEscalationService(db, cfg.Honeypot, nil).Unblock(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if removed == 0 {
			return fmt.Errorf("no block found for %q", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed block for %s\n", args[0])
		return nil
	},
}

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key <key>",
	Short: "Print the bcrypt hash of an admin key for HONEYPOT_ADMIN_PASSWORD_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, errs := services.SanitizeAdminKey(args[0])
		if len(errs) > 0 {
			return fmt.Errorf("invalid admin key: %w", errs[0])
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash key: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(hash))
		return nil
	},
}
