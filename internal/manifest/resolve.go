package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/errors"
)

// Artifact is one of the three per-chapter files.
type Artifact string

const (
	ArtifactAudio     Artifact = "audio"
	ArtifactText      Artifact = "text"
	ArtifactAlignment Artifact = "align"
)

// ParseArtifact maps a user-facing name onto an Artifact.
func ParseArtifact(s string) (Artifact, bool) {
	switch s {
	case "audio":
		return ArtifactAudio, true
	case "text":
		return ArtifactText, true
	case "align", "alignment":
		return ArtifactAlignment, true
	}
	return "", false
}

// Prefixes returns the file name prefixes probed for a chapter id: the
// canonical id, then "ch{id}", then "ch{id:03d}" for numeric ids.
func Prefixes(id string) []string {
	out := []string{id, "ch" + id}
	if n, err := strconv.Atoi(id); err == nil && n >= 0 {
		padded := fmt.Sprintf("ch%03d", n)
		if padded != out[1] {
			out = append(out, padded)
		}
	}
	return out
}

// Resolve finds a chapter artifact inside dir, trying the canonical name
// before the legacy variants. Audio may carry any extension; .mp3 wins when
// several exist.
func Resolve(dir, id string, kind Artifact) (string, error) {
	for _, prefix := range Prefixes(id) {
		switch kind {
		case ArtifactText:
			if p := filepath.Join(dir, prefix+"_text.txt"); fileExists(p) {
				return p, nil
			}
		case ArtifactAlignment:
			if p := filepath.Join(dir, prefix+"_align.json"); fileExists(p) {
				return p, nil
			}
		case ArtifactAudio:
			if p := filepath.Join(dir, prefix+"_audio.mp3"); fileExists(p) {
				return p, nil
			}
			matches, _ := filepath.Glob(filepath.Join(dir, prefix+"_audio.*"))
			sort.Strings(matches)
			for _, m := range matches {
				if fileExists(m) {
					return m, nil
				}
			}
		default:
			return "", errors.Validationf("unknown artifact %q", kind)
		}
	}
	return "", errors.NotFoundf("chapter %s has no %s file", id, kind)
}

// ResolveChapter prefers the file name recorded in the manifest and falls
// back to Resolve.
func ResolveChapter(dir string, ch domain.ManifestChapter, kind Artifact) (string, error) {
	var named string
	switch kind {
	case ArtifactAudio:
		named = ch.AudioFile
	case ArtifactText:
		named = ch.TextFile
	case ArtifactAlignment:
		named = ch.AlignmentFile
	}
	if named != "" && filepath.Base(named) == named {
		if p := filepath.Join(dir, named); fileExists(p) {
			return p, nil
		}
	}
	return Resolve(dir, ch.ID, kind)
}

// ReadAlignment loads a chapter's alignment in either stored shape.
func ReadAlignment(dir string, ch domain.ManifestChapter) (domain.Alignment, error) {
	path, err := ResolveChapter(dir, ch, ArtifactAlignment)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "read alignment")
	}
	a, err := domain.ParseAlignment(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "decode alignment")
	}
	return a, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
