package archive

import (
	"sort"
)

// Triple names the archive entries that make up one chapter.
type Triple struct {
	ID        string
	Audio     string
	AudioExt  string
	Text      string
	Alignment string
}

// Scan groups names into complete triples sorted by id. Ids compare as
// strings, so "10" sorts before "9". Chapters missing any of the three files
// are returned in dropped. When the same id and kind appear twice the first
// entry wins.
func (p *Patterns) Scan(names []string) (triples []Triple, dropped []string) {
	byID := make(map[string]*Triple)
	for _, name := range names {
		if IsSystemArtifact(name) {
			continue
		}
		id, kind, ext, ok := p.Match(name)
		if !ok {
			continue
		}
		t, exists := byID[id]
		if !exists {
			t = &Triple{ID: id}
			byID[id] = t
		}
		switch kind {
		case KindAudio:
			if t.Audio == "" {
				t.Audio, t.AudioExt = name, ext
			}
		case KindText:
			if t.Text == "" {
				t.Text = name
			}
		case KindAlignment:
			if t.Alignment == "" {
				t.Alignment = name
			}
		}
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		t := byID[id]
		if t.Audio == "" || t.Text == "" || t.Alignment == "" {
			dropped = append(dropped, id)
			continue
		}
		triples = append(triples, *t)
	}
	return triples, dropped
}

// MixedWidths reports whether the triples' ids have different digit counts,
// the case where string ordering differs from numeric ordering.
func MixedWidths(triples []Triple) bool {
	if len(triples) == 0 {
		return false
	}
	w := len(triples[0].ID)
	for _, t := range triples[1:] {
		if len(t.ID) != w {
			return true
		}
	}
	return false
}

// CanonicalNames returns the stored file names for a chapter id.
func CanonicalNames(id, audioExt string) (audio, text, alignment string) {
	if audioExt == "" {
		audioExt = "mp3"
	}
	return id + "_audio." + audioExt, id + "_text.txt", id + "_align.json"
}
