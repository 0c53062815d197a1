package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Snawoot/orbitcap/forge"
)

func newInspectCmd(a *app) *cobra.Command {
	var hexDump bool
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the named fields and TLV scan of a captured body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := afero.ReadFile(a.fs, args[0])
			if err != nil {
				return fmt.Errorf("can't read capture: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d bytes\n", args[0], len(data))
			for _, line := range forge.ExtractNamedFields(data) {
				fmt.Fprintln(out, line)
			}
			for _, line := range forge.TLVLines(data) {
				fmt.Fprintln(out, line)
			}
			if hexDump {
				fmt.Fprint(out, forge.HexDump(data))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&hexDump, "hex", false, "also print a hex dump")
	return cmd
}
