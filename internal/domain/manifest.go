package domain

import (
	"fmt"
	"math"
	"time"
)

// ManifestType tells the playback client how the chapters were produced.
type ManifestType string

const (
	ManifestTypeText ManifestType = "txt"
	ManifestTypeEPUB ManifestType = "epub"
	// ManifestTypeEPUBCompatible marks a manifest derived on read from an
	// EpubStructure because no manifest file was stored.
	ManifestTypeEPUBCompatible ManifestType = "epub_compatible"
)

// Manifest is the canonical per-book chapter index.
type Manifest struct {
	CreatedAt     *time.Time        `json:"createdAt,omitempty"`
	Type          ManifestType      `json:"type"`
	Title         string            `json:"title,omitempty"`
	Chapters      []ManifestChapter `json:"chapters"`
	TotalDuration float64           `json:"totalDuration"`
	TotalWords    int               `json:"totalWords,omitempty"`
}

// ManifestChapter is one playable chapter.
type ManifestChapter struct {
	ID            string      `json:"id"`
	Title         string      `json:"title,omitempty"`
	AudioFile     string      `json:"audioFile,omitempty"`
	TextFile      string      `json:"textFile,omitempty"`
	AlignmentFile string      `json:"alignmentFile,omitempty"`
	Type          ChapterType `json:"type,omitempty"`
	Order         int         `json:"order"`
	Duration      float64     `json:"duration"`
	Words         int         `json:"words,omitempty"`
}

// durationTolerance absorbs per-chapter rounding to two decimals.
const durationTolerance = 0.01

// Recompute sets TotalDuration and TotalWords from the chapters.
func (m *Manifest) Recompute() {
	var dur float64
	var words int
	for _, ch := range m.Chapters {
		dur += ch.Duration
		words += ch.Words
	}
	m.TotalDuration = Round2(dur)
	m.TotalWords = words
}

// Validate checks chapter id uniqueness and the duration total.
func (m *Manifest) Validate() error {
	seen := make(map[string]struct{}, len(m.Chapters))
	var sum float64
	for _, ch := range m.Chapters {
		if ch.ID == "" {
			return fmt.Errorf("chapter at order %d has no id", ch.Order)
		}
		if _, dup := seen[ch.ID]; dup {
			return fmt.Errorf("duplicate chapter id %q", ch.ID)
		}
		seen[ch.ID] = struct{}{}
		sum += ch.Duration
	}
	tolerance := durationTolerance * math.Max(1, float64(len(m.Chapters)))
	if math.Abs(sum-m.TotalDuration) > tolerance {
		return fmt.Errorf("totalDuration %.2f does not match chapter sum %.2f", m.TotalDuration, sum)
	}
	return nil
}

// Chapter returns the chapter with the given id.
func (m *Manifest) Chapter(id string) (ManifestChapter, bool) {
	for _, ch := range m.Chapters {
		if ch.ID == id {
			return ch, true
		}
	}
	return ManifestChapter{}, false
}
