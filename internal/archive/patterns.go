// Package archive normalizes pre-synthesized chapter bundles: zip archives
// holding one audio, text and alignment file per chapter.
package archive

import (
	"path"
	"regexp"
	"strings"
)

// Kind is the role a file plays in a chapter triple.
type Kind int

const (
	KindAudio Kind = iota
	KindText
	KindAlignment
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindText:
		return "text"
	case KindAlignment:
		return "alignment"
	default:
		return "unknown"
	}
}

// Patterns recognizes the two chapter naming conventions:
//
//	legacy: 0000001.mp3, 0000001.txt, 0000001.json
//	modern: ch001_audio.mp3, ch001_text.txt, ch001_align.json
//
// A Patterns value is immutable once built; share it freely.
type Patterns struct {
	legacy    *regexp.Regexp
	modern    *regexp.Regexp
	audioExts map[string]bool
}

// DefaultPatterns returns the conventions used by every known bundle producer.
func DefaultPatterns() *Patterns {
	return &Patterns{
		legacy: regexp.MustCompile(`(?i)^(\d{1,9})\.(mp3|txt|json)$`),
		modern: regexp.MustCompile(`(?i)^ch(\d+)_(audio|text|align)\.([a-z0-9]+)$`),
		audioExts: map[string]bool{
			"mp3": true, "m4a": true, "m4b": true, "aac": true,
			"ogg": true, "opus": true, "wav": true, "flac": true,
		},
	}
}

// Match classifies a file name. Directories in name are ignored; matching
// is on the base name only.
func (p *Patterns) Match(name string) (id string, kind Kind, ext string, ok bool) {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))

	if m := p.legacy.FindStringSubmatch(base); m != nil {
		ext = strings.ToLower(m[2])
		switch ext {
		case "mp3":
			return m[1], KindAudio, ext, true
		case "txt":
			return m[1], KindText, ext, true
		default:
			return m[1], KindAlignment, ext, true
		}
	}

	if m := p.modern.FindStringSubmatch(base); m != nil {
		ext = strings.ToLower(m[3])
		switch strings.ToLower(m[2]) {
		case "audio":
			if p.audioExts[ext] {
				return m[1], KindAudio, ext, true
			}
		case "text":
			if ext == "txt" {
				return m[1], KindText, ext, true
			}
		case "align":
			if ext == "json" {
				return m[1], KindAlignment, ext, true
			}
		}
	}

	return "", 0, "", false
}

// AlignmentID extracts the chapter id from a modern alignment file name.
func (p *Patterns) AlignmentID(name string) (string, bool) {
	id, kind, _, ok := p.Match(name)
	if !ok || kind != KindAlignment {
		return "", false
	}
	if p.legacy.MatchString(path.Base(name)) {
		return "", false
	}
	return id, true
}

// AnyMatch reports whether at least one name follows a chapter convention.
func (p *Patterns) AnyMatch(names []string) bool {
	for _, n := range names {
		if _, _, _, ok := p.Match(n); ok {
			return true
		}
	}
	return false
}

// IsSystemArtifact reports entries added by archivers or file browsers:
// macOS resource forks and metadata, Finder and Explorer caches.
func IsSystemArtifact(name string) bool {
	name = strings.ReplaceAll(name, `\`, "/")
	for _, part := range strings.Split(name, "/") {
		if part == "__MACOSX" {
			return true
		}
	}
	base := path.Base(name)
	return base == ".DS_Store" || base == "Thumbs.db" || strings.HasPrefix(base, "._")
}
