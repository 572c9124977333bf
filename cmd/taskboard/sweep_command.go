package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Recreate recurring tasks whose next instance is missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("window") {
				window = cfg.SweepWindow
			}
			return ctx.withApp(func(a *app) error {
				repaired, err := a.recreator.Sweep(cmd.Context(), time.Now().Add(-window))
				fmt.Fprintf(cmd.OutOrStdout(), "Repaired %d recurring chain(s)\n", repaired)
				return err
			})
		},
	}

	cmd.Flags().DurationVar(&window, "window", 0, "Only consider tasks completed within this window")
	return cmd
}
