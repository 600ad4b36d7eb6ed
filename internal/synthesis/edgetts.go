package synthesis

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/listenupapp/listenup-ingest/internal/errors"
)

// EdgeTTS runs the edge-tts command line client. Boundaries come from the
// subtitle file it writes beside the audio. Recent releases write one cue per
// sentence there, so alignment entries are sentence-sized rather than
// word-sized.
type EdgeTTS struct {
	path string
}

// NewEdgeTTS locates the edge-tts binary. An empty path searches PATH.
func NewEdgeTTS(path string) (*EdgeTTS, error) {
	if path == "" {
		found, err := exec.LookPath("edge-tts")
		if err != nil {
			return nil, fmt.Errorf("edge-tts not found: %w", err)
		}
		path = found
	}
	return &EdgeTTS{path: path}, nil
}

// Args builds the command line for one request.
func (e *EdgeTTS) Args(voice, textFile, mediaFile, subtitleFile string) []string {
	return []string{
		"--voice", voice,
		"--file", textFile,
		"--write-media", mediaFile,
		"--write-subtitles", subtitleFile,
	}
}

// Synthesize implements Engine.
func (e *EdgeTTS) Synthesize(ctx context.Context, req Request, audio io.Writer) ([]BoundaryEvent, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.Synthesis("nothing to synthesize")
	}

	work, err := os.MkdirTemp("", "edge-tts-*")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "create synthesis workspace")
	}
	defer os.RemoveAll(work)

	textFile := filepath.Join(work, "input.txt")
	mediaFile := filepath.Join(work, "media.mp3")
	subFile := filepath.Join(work, "media.srt")
	if err := os.WriteFile(textFile, []byte(req.Text), 0o600); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "write synthesis input")
	}

	cmd := exec.CommandContext(ctx, e.path, e.Args(req.Voice, textFile, mediaFile, subFile)...) //nolint:gosec // path is resolved at construction
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), errors.CodeSynthesis, "edge-tts interrupted")
		}
		return nil, errors.Synthesisf("edge-tts failed: %s", strings.TrimSpace(stderr.String())).WithCause(err)
	}

	media, err := os.Open(mediaFile)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSynthesis, "edge-tts wrote no audio")
	}
	defer media.Close()
	if _, err := io.Copy(audio, media); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "copy synthesized audio")
	}

	subs, err := os.Open(subFile)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSynthesis, "edge-tts wrote no subtitles")
	}
	defer subs.Close()

	events, err := ParseCues(subs)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSynthesis, "parse edge-tts subtitles")
	}
	return events, nil
}
