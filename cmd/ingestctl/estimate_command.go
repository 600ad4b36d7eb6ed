package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/listenupapp/listenup-ingest/internal/synthesis"
	"github.com/listenupapp/listenup-ingest/internal/textseg"
)

type chapterPlan struct {
	ID          string  `json:"id"`
	Minutes     float64 `json:"estimated_minutes"`
	Words       int     `json:"words"`
	SubSegments int     `json:"sub_segments"`
}

type estimateReport struct {
	textseg.Analysis
	MaxChapterMinutes float64       `json:"max_chapter_minutes"`
	Chapters          []chapterPlan `json:"chapters"`
}

func newEstimateCommand(ctx *commandContext) *cobra.Command {
	var maxMinutes float64

	cmd := &cobra.Command{
		Use:   "estimate <manuscript>",
		Short: "Estimate narration time and preview the chapter plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("max-minutes") {
				maxMinutes = cfg.Synthesis.MaxChapterMinutes
			}

			text, err := readManuscript(args[0])
			if err != nil {
				return err
			}
			report := estimate(text, maxMinutes)

			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Words:   %d (%d CJK, %d Latin)\n", report.TotalWords, report.CJKChars, report.LatinWords)
			fmt.Fprintf(out, "Minutes: %.1f\n", report.Minutes)

			rows := make([][]string, 0, len(report.Chapters))
			for _, ch := range report.Chapters {
				rows = append(rows, []string{
					ch.ID,
					strconv.FormatFloat(ch.Minutes, 'f', 1, 64),
					strconv.Itoa(ch.Words),
					strconv.Itoa(ch.SubSegments),
				})
			}
			printTable(cmd,
				[]string{"Chapter", "Minutes", "Words", "Segments"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
			)
			return nil
		},
	}

	cmd.Flags().Float64Var(&maxMinutes, "max-minutes", 0, "Chapter duration ceiling in minutes (default from config)")

	return cmd
}

// estimate plans chapters the way the synthesis orchestrator will: chapters
// from paragraphs, and sentence sub-segments for chapters over the ceiling.
func estimate(text string, maxMinutes float64) *estimateReport {
	estimator := textseg.DefaultEstimator()
	splitter := textseg.NewSplitter(maxMinutes)

	report := &estimateReport{
		Analysis:          estimator.Analyze(text),
		MaxChapterMinutes: maxMinutes,
	}
	for i, chapter := range splitter.Chapters(text) {
		a := estimator.Analyze(chapter)
		segments := 1
		if splitter.NeedsSubSegments(chapter) {
			segments = len(splitter.SubSegments(chapter))
		}
		report.Chapters = append(report.Chapters, chapterPlan{
			ID:          synthesis.ChapterID(i + 1),
			Minutes:     a.Minutes,
			Words:       a.TotalWords,
			SubSegments: segments,
		})
	}
	return report
}
