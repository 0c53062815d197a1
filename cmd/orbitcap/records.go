package main

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/Snawoot/orbitcap/journal"
)

const cellWidth = 60

func newRecordsCmd(a *app) *cobra.Command {
	var (
		limit  int
		export string
	)
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List journaled records or export the session log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := ensureDir(a.cfg.Journal.Path); err != nil {
				return err
			}
			// no retention here, listing must not purge
			jr, err := journal.New(a.cfg.Journal.Path, 0, a.logger)
			if err != nil {
				return err
			}
			defer jr.Close()

			out := cmd.OutOrStdout()
			if export != "" {
				f, err := a.fs.Create(export)
				if err != nil {
					return fmt.Errorf("can't create export file: %w", err)
				}
				n, err := jr.Export(f)
				if cerr := f.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Exported %d records to %s\n", n, export)
				return nil
			}

			recs, err := jr.List(limit)
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"ID", "Time", "Method", "Target", "Status", "Response"})
			table.SetAutoWrapText(false)
			for _, rec := range recs {
				status := ""
				if rec.StatusCode != 0 {
					status = strconv.Itoa(rec.StatusCode)
				}
				table.Append([]string{
					strconv.FormatInt(rec.ID, 10),
					rec.Timestamp.Format("2006-01-02 15:04:05"),
					rec.Method,
					ellipsize(rec.Target, cellWidth),
					status,
					ellipsize(rec.ResponseBody, cellWidth),
				})
			}
			table.Render()
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&limit, "limit", 50, "show at most this many recent records (0 for all)")
	flags.StringVar(&export, "export", "", "write the session log to this file instead of listing")
	flags.String("journal", a.cfg.Journal.Path, "journal directory")
	a.bindFlags(cmd, flags, map[string]string{"journal.path": "journal"})
	return cmd
}

func ellipsize(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
