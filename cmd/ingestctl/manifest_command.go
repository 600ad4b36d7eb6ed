package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/listenupapp/listenup-ingest/internal/manifest"
)

func newManifestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest <book-dir>",
		Short: "Print a book's chapter manifest",
		Long: "Manifest loads manifest.json the way the server serves it, deriving " +
			"one from epub_structure.json for books stored without a manifest.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, m)
			}

			out := cmd.OutOrStdout()
			if m.Title != "" {
				fmt.Fprintf(out, "Title: %s\n", m.Title)
			}
			fmt.Fprintf(out, "Type:  %s\n", m.Type)

			rows := make([][]string, 0, len(m.Chapters))
			for _, ch := range m.Chapters {
				rows = append(rows, []string{
					strconv.Itoa(ch.Order),
					ch.ID,
					ch.Title,
					string(ch.Type),
					formatSeconds(ch.Duration),
					strconv.Itoa(ch.Words),
				})
			}
			rows = append(rows, []string{"", "", "Total", "", formatSeconds(m.TotalDuration), strconv.Itoa(m.TotalWords)})
			printTable(cmd,
				[]string{"#", "ID", "Title", "Type", "Seconds", "Words"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			)
			return nil
		},
	}
}
