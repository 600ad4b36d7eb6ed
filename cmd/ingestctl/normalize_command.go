package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/listenupapp/listenup-ingest/internal/archive"
	"github.com/listenupapp/listenup-ingest/internal/audio"
	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/epub"
	"github.com/listenupapp/listenup-ingest/internal/errors"
	"github.com/listenupapp/listenup-ingest/internal/manifest"
	"github.com/listenupapp/listenup-ingest/internal/media/images"
	"github.com/listenupapp/listenup-ingest/internal/router"
)

type normalizeReport struct {
	Route    router.Route     `json:"route"`
	Dir      string           `json:"dir"`
	Manifest *domain.Manifest `json:"manifest"`
	Segments int              `json:"total_segments"`
	Dropped  []string         `json:"dropped,omitempty"`
	Cover    string           `json:"cover,omitempty"`
	Pairing  *epub.Pairing    `json:"pairing,omitempty"`
}

func newNormalizeCommand(ctx *commandContext) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "normalize <bundle> <output-dir>",
		Short: "Normalize a chapter or EPUB bundle into a book directory",
		Long: "Normalize writes canonical chapter files and manifest.json for a " +
			"chapter bundle, or the unpacked EPUB, structure and manifest for an " +
			"EPUB bundle. Manuscripts are synthesized by the server only.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("strict") {
				cfg.EPUB.StrictPairing = strict
			}

			report, err := normalize(cmd.Context(), ctx, args[0], args[1], cfg.EPUB.StrictPairing)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}
			printNormalizeReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Reject EPUB bundles whose alignment count differs from the content chapters")

	return cmd
}

func normalize(ctx context.Context, cc *commandContext, src, outDir string, strict bool) (*normalizeReport, error) {
	sub, err := openSubmission(src)
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	decision, err := router.New(nil).Detect(sub.Submission)
	if err != nil {
		return nil, err
	}

	log := cc.logger()
	reader := audio.NewMetaReader(0)
	report := &normalizeReport{Route: decision.Route, Dir: outDir}

	switch decision.Route {
	case router.RouteArchive:
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return nil, err
		}
		res, err := archive.NewNormalizer(nil, reader, log).Normalize(ctx, sub.Archive, outDir)
		if err != nil {
			return nil, err
		}
		if err := manifest.Save(outDir, res.Manifest); err != nil {
			return nil, err
		}
		report.Manifest = res.Manifest
		report.Segments = res.TotalSegments
		report.Dropped = res.Dropped

	case router.RouteEPUB:
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return nil, err
		}
		covers := images.NewProcessor(images.NewCoverStore(), reader, log)
		res, err := epub.NewIngester(nil, reader, covers, strict, log).Ingest(ctx, sub.Archive, outDir)
		if err != nil {
			return nil, err
		}
		if err := manifest.SaveStructure(outDir, res.Structure); err != nil {
			return nil, err
		}
		if err := manifest.Save(outDir, res.Manifest); err != nil {
			return nil, err
		}
		report.Manifest = res.Manifest
		report.Segments = res.TotalSegments
		report.Pairing = &res.Pairing
		if res.Cover != nil {
			report.Cover = res.Cover.File
		}

	default:
		return nil, errors.Validation("manuscripts are synthesized by the server; use estimate to preview the chapter plan")
	}

	return report, nil
}

func printNormalizeReport(cmd *cobra.Command, r *normalizeReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Route:    %s\n", r.Route)
	fmt.Fprintf(out, "Output:   %s\n", r.Dir)
	fmt.Fprintf(out, "Chapters: %d (%s s, %d segments)\n", len(r.Manifest.Chapters), formatSeconds(r.Manifest.TotalDuration), r.Segments)
	if len(r.Dropped) > 0 {
		fmt.Fprintf(out, "Dropped:  %v\n", r.Dropped)
	}
	if r.Pairing != nil {
		fmt.Fprintf(out, "Pairing:  %d content chapters, %d alignments, %d paired\n",
			r.Pairing.Eligible, r.Pairing.Alignments, r.Pairing.Paired)
	}
	if r.Cover != "" {
		fmt.Fprintf(out, "Cover:    %s\n", r.Cover)
	}
}
