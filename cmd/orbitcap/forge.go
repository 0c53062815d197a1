package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Snawoot/orbitcap/forge"
)

func newForgeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forge IN OUT",
		Short: "Write a forged sign-on response for a captured request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, err := forge.ParseStrategy(a.cfg.HTTP.Strategy)
			if err != nil {
				return err
			}
			req, err := afero.ReadFile(a.fs, args[0])
			if err != nil {
				return fmt.Errorf("can't read request: %w", err)
			}
			resp := forge.Forge(req, strategy)
			if err := afero.WriteFile(a.fs, args[1], resp, 0644); err != nil {
				return fmt.Errorf("can't write response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[Binary payload: %d bytes] %s → %s (%s)\n",
				len(resp), args[0], args[1], strategy)
			return nil
		},
	}
	cmd.Flags().String("strategy", a.cfg.HTTP.Strategy, "signature strategy: zero, echo or random")
	a.bindFlags(cmd, cmd.Flags(), map[string]string{"http.strategy": "strategy"})
	return cmd
}
