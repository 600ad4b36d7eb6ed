package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/listenupapp/listenup-ingest/internal/archive"
	"github.com/listenupapp/listenup-ingest/internal/router"
)

type inspectReport struct {
	File     string           `json:"file"`
	Route    router.Route     `json:"route"`
	Document string           `json:"document,omitempty"`
	Entries  int              `json:"entries"`
	Chapters []archive.Triple `json:"chapters,omitempty"`
	Dropped  []string         `json:"dropped,omitempty"`
}

func newInspectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show which pipeline a submission would take",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := inspect(args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}
			printInspectReport(cmd, report)
			return nil
		},
	}
}

func inspect(path string) (*inspectReport, error) {
	sub, err := openSubmission(path)
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	decision, err := router.New(nil).Detect(sub.Submission)
	if err != nil {
		return nil, err
	}

	report := &inspectReport{
		File:     path,
		Route:    decision.Route,
		Document: decision.Document,
		Entries:  decision.Entries,
	}
	if decision.Route == router.RouteArchive {
		report.Chapters, report.Dropped = archive.DefaultPatterns().Scan(archive.EntryNames(sub.Archive))
	}
	return report, nil
}

func printInspectReport(cmd *cobra.Command, r *inspectReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File:    %s\n", r.File)
	fmt.Fprintf(out, "Route:   %s\n", r.Route)
	if r.Document != "" {
		fmt.Fprintf(out, "E-book:  %s\n", r.Document)
	}
	if r.Route != router.RouteSynthesis {
		fmt.Fprintf(out, "Entries: %d\n", r.Entries)
	}

	if len(r.Chapters) > 0 {
		rows := make([][]string, 0, len(r.Chapters))
		for _, t := range r.Chapters {
			rows = append(rows, []string{t.ID, t.Audio, t.Text, t.Alignment})
		}
		printTable(cmd, []string{"ID", "Audio", "Text", "Alignment"}, rows, nil)
	}
	if len(r.Dropped) > 0 {
		fmt.Fprintf(out, "Incomplete (dropped): %v\n", r.Dropped)
	}
}
