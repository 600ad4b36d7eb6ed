package synthesis

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/errors"
)

// Merger concatenates audio files with silence between consecutive inputs.
type Merger interface {
	Merge(ctx context.Context, inputs []string, gap time.Duration, output string) error
}

// FFmpegMerger merges with an ffmpeg filter graph.
type FFmpegMerger struct {
	path    string
	bitrate string
	timeout time.Duration
}

// NewFFmpegMerger locates ffmpeg. An empty path searches PATH.
func NewFFmpegMerger(path, bitrate string, timeout time.Duration) (*FFmpegMerger, error) {
	if path == "" {
		found, err := exec.LookPath("ffmpeg")
		if err != nil {
			return nil, fmt.Errorf("ffmpeg not found: %w", err)
		}
		path = found
	}
	if bitrate == "" {
		bitrate = "128k"
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &FFmpegMerger{path: path, bitrate: bitrate, timeout: timeout}, nil
}

// MergeArgs builds the ffmpeg arguments. Every input but the last is padded
// with gap seconds of silence before concatenation.
func MergeArgs(inputs []string, gap time.Duration, bitrate, output string) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	for _, in := range inputs {
		args = append(args, "-i", in)
	}

	var graph strings.Builder
	last := len(inputs) - 1
	if gap > 0 {
		pad := strconv.FormatFloat(gap.Seconds(), 'f', -1, 64)
		for i := range inputs {
			if i < last {
				fmt.Fprintf(&graph, "[%d:a]apad=pad_dur=%s[a%d];", i, pad, i)
			} else {
				fmt.Fprintf(&graph, "[%d:a]anull[a%d];", i, i)
			}
		}
		for i := range inputs {
			fmt.Fprintf(&graph, "[a%d]", i)
		}
	} else {
		for i := range inputs {
			fmt.Fprintf(&graph, "[%d:a]", i)
		}
	}
	fmt.Fprintf(&graph, "concat=n=%d:v=0:a=1[out]", len(inputs))

	return append(args,
		"-filter_complex", graph.String(),
		"-map", "[out]",
		"-codec:a", "libmp3lame",
		"-b:a", bitrate,
		"-y", output,
	)
}

// Merge implements Merger. A single input is copied unchanged.
func (m *FFmpegMerger) Merge(ctx context.Context, inputs []string, gap time.Duration, output string) error {
	switch len(inputs) {
	case 0:
		return errors.Synthesis("no audio to merge")
	case 1:
		return copyFile(inputs[0], output)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.path, MergeArgs(inputs, gap, m.bitrate, output)...) //nolint:gosec // path is resolved at construction
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.Synthesisf("ffmpeg merge timed out after %s", m.timeout).WithCause(err)
		}
		return errors.Synthesisf("ffmpeg merge failed: %s", strings.TrimSpace(stderr.String())).WithCause(err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, errors.CodeStorage, "open segment audio")
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, errors.CodeStorage, "create chapter audio")
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrap(err, errors.CodeStorage, "copy chapter audio")
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "close chapter audio")
	}
	return nil
}

// Part is one synthesized sub-segment.
type Part struct {
	Alignment domain.Alignment
	Duration  float64
}

// MergeAlignments re-bases each part's timestamps by the summed duration and
// gap of all earlier parts. The total is the sum of durations plus one gap
// between each consecutive pair.
func MergeAlignments(parts []Part, gap time.Duration) (domain.Alignment, float64) {
	var merged domain.Alignment
	var offset float64
	g := gap.Seconds()
	for i, p := range parts {
		merged = append(merged, p.Alignment.Shift(offset)...)
		offset += p.Duration
		if i < len(parts)-1 {
			offset += g
		}
	}
	if merged == nil {
		merged = domain.Alignment{}
	}
	return merged, offset
}
