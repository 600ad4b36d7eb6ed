package textseg

import (
	"strings"
	"unicode"
)

// DefaultMaxMinutes is the per-chapter narration ceiling.
const DefaultMaxMinutes = 8.0

// Splitter chapterizes text by estimated narration time.
type Splitter struct {
	Estimator  Estimator
	MaxMinutes float64
}

// NewSplitter returns a splitter with the default estimator.
func NewSplitter(maxMinutes float64) Splitter {
	if maxMinutes <= 0 {
		maxMinutes = DefaultMaxMinutes
	}
	return Splitter{Estimator: DefaultEstimator(), MaxMinutes: maxMinutes}
}

// Chapters splits text into chapters whose estimate stays under the ceiling.
//
// Text whose whole estimate fits is returned unmodified as a single chapter.
// Otherwise non-blank lines are accumulated greedily and joined with a blank
// line. A line that alone exceeds the ceiling flushes the current chapter and
// becomes its own oversized chapter.
func (s Splitter) Chapters(text string) []string {
	if s.Estimator.Minutes(text) <= s.MaxMinutes {
		return []string{text}
	}

	var paragraphs []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			paragraphs = append(paragraphs, line)
		}
	}
	return s.accumulate(paragraphs, "\n\n")
}

// SubSegments splits an oversized chapter for independent synthesis. It
// applies the chapter algorithm first and then breaks any piece still over
// the ceiling at sentence boundaries. A chapter under the ceiling is
// returned as is.
func (s Splitter) SubSegments(text string) []string {
	if s.Estimator.Minutes(text) <= s.MaxMinutes {
		return []string{text}
	}

	var out []string
	for _, piece := range s.Chapters(text) {
		if s.Estimator.Minutes(piece) <= s.MaxMinutes {
			out = append(out, piece)
			continue
		}
		out = append(out, s.accumulate(Sentences(piece), "")...)
	}
	return out
}

// NeedsSubSegments reports whether a chapter exceeds the ceiling.
func (s Splitter) NeedsSubSegments(text string) bool {
	return s.Estimator.Minutes(text) > s.MaxMinutes
}

func (s Splitter) accumulate(units []string, sep string) []string {
	var (
		segments []string
		current  []string
		minutes  float64
	)
	flush := func() {
		if len(current) > 0 {
			segments = append(segments, strings.Join(current, sep))
		}
		current = nil
		minutes = 0
	}

	for _, unit := range units {
		m := s.Estimator.Minutes(unit)

		if m > s.MaxMinutes {
			flush()
			segments = append(segments, unit)
			continue
		}

		if minutes+m <= s.MaxMinutes {
			current = append(current, unit)
			minutes += m
			continue
		}

		flush()
		current = []string{unit}
		minutes = m
	}
	flush()

	return segments
}

// Sentences splits text after sentence terminators, keeping each terminator
// and any closing quotes or brackets with its sentence. Concatenating the
// result reproduces the input.
func Sentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		j := i + 1
		for j < len(runes) && (isTerminator(runes[j]) || isCloser(runes[j])) {
			j++
		}
		// ASCII '.' inside a token such as "3.14" or "e.g" is not a break.
		if runes[i] == '.' && j < len(runes) && !unicode.IsSpace(runes[j]) && !isCloser(runes[j]) {
			continue
		}
		out = append(out, string(runes[start:j]))
		start = j
		i = j - 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

func isTerminator(r rune) bool {
	switch r {
	case '。', '！', '？', '；', '…', '.', '!', '?', ';', '\n':
		return true
	}
	return false
}

func isCloser(r rune) bool {
	switch r {
	case '”', '’', '」', '』', '）', '》', '"', '\'', ')', ']':
		return true
	}
	return false
}
