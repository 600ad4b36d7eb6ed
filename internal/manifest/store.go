package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/errors"
)

// Save writes manifest.json into dir.
func Save(dir string, m *domain.Manifest) error {
	return writeJSON(filepath.Join(dir, FileName), m)
}

// SaveStructure writes epub_structure.json into dir.
func SaveStructure(dir string, s *domain.EpubStructure) error {
	return writeJSON(filepath.Join(dir, StructureFileName), s)
}

// writeJSON writes through a temp file and renames, so readers never see a
// half-written manifest.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, errors.CodeStorage, "encode %s", filepath.Base(path))
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, errors.CodeStorage, "write %s", filepath.Base(path))
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, errors.CodeStorage, "rename %s", filepath.Base(path))
	}
	return nil
}

// LoadStructure reads epub_structure.json from dir.
func LoadStructure(dir string) (*domain.EpubStructure, error) {
	data, err := os.ReadFile(filepath.Join(dir, StructureFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("epub structure not found")
		}
		return nil, errors.Wrap(err, errors.CodeStorage, "read epub structure")
	}
	var s domain.EpubStructure
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "decode epub structure")
	}
	return &s, nil
}

// Load reads the manifest in dir. When manifest.json is absent but an EPUB
// structure exists, an epub_compatible manifest is derived from it. Older
// snake_case manifests are normalized to the current shape.
func Load(dir string) (*domain.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err == nil {
		return decode(data)
	}
	if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, errors.CodeStorage, "read manifest")
	}

	s, serr := LoadStructure(dir)
	if serr != nil {
		if errors.Is(serr, errors.ErrNotFound) {
			return nil, errors.NotFound("manifest not found")
		}
		return nil, serr
	}
	return FromStructure(s, domain.ManifestTypeEPUBCompatible), nil
}

// rawManifest accepts both the current camelCase keys and the snake_case
// keys written by earlier releases.
type rawManifest struct {
	Type                string       `json:"type"`
	Title               string       `json:"title"`
	BookTitle           string       `json:"book_title"`
	CreatedAt           *time.Time   `json:"createdAt"`
	CreatedAtLegacy     string       `json:"created_at"`
	Chapters            []rawChapter `json:"chapters"`
	TotalDuration       *float64     `json:"totalDuration"`
	TotalDurationLegacy *float64     `json:"total_duration"`
	TotalWords          int          `json:"totalWords"`
	TotalWordsLegacy    int          `json:"total_words"`
}

type rawChapter struct {
	ID                  json.RawMessage    `json:"id"`
	Title               string             `json:"title"`
	AudioFile           string             `json:"audioFile"`
	AudioFileLegacy     string             `json:"audio_file"`
	TextFile            string             `json:"textFile"`
	TextFileLegacy      string             `json:"text_file"`
	AlignmentFile       string             `json:"alignmentFile"`
	AlignmentFileLegacy string             `json:"alignment_file"`
	AlignFileLegacy     string             `json:"align_file"`
	Type                domain.ChapterType `json:"type"`
	Order               int                `json:"order"`
	Duration            float64            `json:"duration"`
	Words               int                `json:"words"`
}

var legacyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
}

func decode(data []byte) (*domain.Manifest, error) {
	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "decode manifest")
	}

	m := &domain.Manifest{
		Type:       domain.ManifestType(raw.Type),
		Title:      firstNonEmpty(raw.Title, raw.BookTitle),
		CreatedAt:  raw.CreatedAt,
		TotalWords: raw.TotalWords,
		Chapters:   make([]domain.ManifestChapter, 0, len(raw.Chapters)),
	}
	if m.Type == "" {
		m.Type = domain.ManifestTypeText
	}
	if m.CreatedAt == nil && raw.CreatedAtLegacy != "" {
		for _, layout := range legacyTimeLayouts {
			if t, err := time.Parse(layout, raw.CreatedAtLegacy); err == nil {
				m.CreatedAt = &t
				break
			}
		}
	}
	if m.TotalWords == 0 {
		m.TotalWords = raw.TotalWordsLegacy
	}

	for i, rc := range raw.Chapters {
		id, err := chapterID(rc.ID)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeStorage, "decode manifest chapter %d", i+1)
		}
		order := rc.Order
		if order == 0 {
			order = i + 1
		}
		m.Chapters = append(m.Chapters, domain.ManifestChapter{
			ID:            id,
			Title:         rc.Title,
			AudioFile:     firstNonEmpty(rc.AudioFile, rc.AudioFileLegacy),
			TextFile:      firstNonEmpty(rc.TextFile, rc.TextFileLegacy),
			AlignmentFile: firstNonEmpty(rc.AlignmentFile, rc.AlignmentFileLegacy, rc.AlignFileLegacy),
			Type:          rc.Type,
			Order:         order,
			Duration:      rc.Duration,
			Words:         rc.Words,
		})
	}

	switch {
	case raw.TotalDuration != nil:
		m.TotalDuration = *raw.TotalDuration
	case raw.TotalDurationLegacy != nil:
		m.TotalDuration = *raw.TotalDurationLegacy
	default:
		words := m.TotalWords
		m.Recompute()
		if m.TotalWords == 0 {
			m.TotalWords = words
		}
	}
	return m, nil
}

// chapterID accepts ids written as strings or as bare numbers.
func chapterID(raw json.RawMessage) (string, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return "", fmt.Errorf("chapter has no id")
	}
	if s[0] == '"' {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", err
		}
		return id, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return "", fmt.Errorf("chapter id %s is neither string nor integer", s)
	}
	return strconv.FormatInt(n, 10), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
