/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/friendsincode/hearth_radio/internal/cache"
)

var (
	resetForce      bool
	resetSchedule   bool
	resetSettings   bool
	resetFlushCache bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the schedule and/or restore default settings",
	Long: `Reset parts of Hearth Radio to a fresh state.

--schedule removes every block from the weekly grid.
--settings restores default settings, including the PIN (1315).
With neither flag, both are reset. The library is never touched.

Examples:
  # Interactive reset of everything (will prompt for confirmation)
  hearthradio reset

  # Only wipe the schedule, no prompt
  hearthradio reset --schedule --force
`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "Skip confirmation prompt")
	resetCmd.Flags().BoolVar(&resetSchedule, "schedule", false, "Clear all schedule blocks")
	resetCmd.Flags().BoolVar(&resetSettings, "settings", false, "Restore default settings")
	resetCmd.Flags().BoolVar(&resetFlushCache, "flush-cache", false, "Also flush cached search results from Redis")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	schedule, settings := resetSchedule, resetSettings
	if !schedule && !settings {
		schedule, settings = true, true
	}

	if !resetForce {
		ok, err := confirmReset(cmd.InOrStdin(), cmd.OutOrStdout(), schedule, settings)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Reset cancelled.")
			return nil
		}
	}

	st, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if schedule {
		n, err := st.ClearBlocks(ctx)
		if err != nil {
			return err
		}
		logger.Info().Int64("blocks", n).Msg("schedule cleared")
	}
	if settings {
		if err := st.ResetSettings(ctx); err != nil {
			return err
		}
		logger.Info().Msg("settings restored to defaults")
	}

	if resetFlushCache {
		c, err := cache.New(cache.ConfigFrom(cfg), logger)
		if err != nil {
			return fmt.Errorf("connect cache: %w", err)
		}
		defer c.Close()
		if err := c.FlushAll(ctx); err != nil {
			return fmt.Errorf("flush cache: %w", err)
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Reset complete.")
	return nil
}

func confirmReset(in io.Reader, out io.Writer, schedule, settings bool) (bool, error) {
	fmt.Fprintln(out, "This will:")
	if schedule {
		fmt.Fprintln(out, "  • delete every block from the weekly schedule")
	}
	if settings {
		fmt.Fprintln(out, "  • restore default settings and reset the PIN to 1315")
	}
	fmt.Fprintln(out, "This action CANNOT be undone!")
	fmt.Fprint(out, "Type 'yes' to confirm reset: ")

	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(strings.ToLower(response)) == "yes", nil
}
