package domain

// ChapterType classifies an EPUB spine item.
type ChapterType string

const (
	ChapterTypeCover        ChapterType = "Cover"
	ChapterTypeTitle        ChapterType = "Title"
	ChapterTypeCopyright    ChapterType = "Copyright"
	ChapterTypeContents     ChapterType = "Contents"
	ChapterTypeIntroduction ChapterType = "Introduction"
	ChapterTypeChapter      ChapterType = "Chapter"
	ChapterTypeContent      ChapterType = "Content"
)

// CarriesAudio reports whether items of this type are paired with narration.
func (t ChapterType) CarriesAudio() bool {
	return t == ChapterTypeChapter || t == ChapterTypeContent
}

// EpubMetadata is the document-level Dublin Core metadata.
type EpubMetadata struct {
	Title   string `json:"title,omitempty"`
	Creator string `json:"creator,omitempty"`
}

// EpubChapter is one spine item. Audio-bearing items carry the id of the
// alignment file they were paired with.
type EpubChapter struct {
	ID            string      `json:"id,omitempty"`
	EpubID        string      `json:"epub_id"`
	Title         string      `json:"title"`
	Href          string      `json:"href"`
	FilePath      string      `json:"file_path"`
	Type          ChapterType `json:"type"`
	AudioFile     string      `json:"audio_file,omitempty"`
	AlignmentFile string      `json:"alignment_file,omitempty"`
	TextFile      string      `json:"text_file,omitempty"`
	Order         int         `json:"order"`
	Duration      float64     `json:"duration,omitempty"`
	HasAudio      bool        `json:"has_audio"`
}

// EpubStructure is the full reading order of an EPUB submission, retained
// beside the simplified manifest.
type EpubStructure struct {
	Type          string        `json:"type"`
	Metadata      EpubMetadata  `json:"metadata"`
	Chapters      []EpubChapter `json:"chapters"`
	TotalChapters int           `json:"total_chapters"`
}

// AudioChapters returns the spine items paired with narration, in spine order.
func (s *EpubStructure) AudioChapters() []EpubChapter {
	var out []EpubChapter
	for _, ch := range s.Chapters {
		if ch.HasAudio {
			out = append(out, ch)
		}
	}
	return out
}
