// Package textseg estimates narration time for text and splits manuscripts
// into duration-bounded chapters and sub-segments.
package textseg

// Default speaking rates.
const (
	DefaultCJKPerMinute   = 220.0
	DefaultLatinPerMinute = 200.0
)

// Estimator converts text into an estimated narration time. The zero value
// is not usable; use NewEstimator or DefaultEstimator.
type Estimator struct {
	cjkPerMinute   float64
	latinPerMinute float64
}

// NewEstimator returns an estimator with the given rates. Non-positive rates
// fall back to the defaults.
func NewEstimator(cjkPerMinute, latinPerMinute float64) Estimator {
	if cjkPerMinute <= 0 {
		cjkPerMinute = DefaultCJKPerMinute
	}
	if latinPerMinute <= 0 {
		latinPerMinute = DefaultLatinPerMinute
	}
	return Estimator{cjkPerMinute: cjkPerMinute, latinPerMinute: latinPerMinute}
}

// DefaultEstimator uses 220 ideographs and 200 Latin words per minute.
func DefaultEstimator() Estimator {
	return NewEstimator(DefaultCJKPerMinute, DefaultLatinPerMinute)
}

// Analysis holds text statistics.
type Analysis struct {
	CJKChars   int     `json:"cjk_chars"`
	LatinWords int     `json:"latin_words"`
	TotalWords int     `json:"total_words"`
	Minutes    float64 `json:"estimated_minutes"`
}

// Analyze counts CJK unified ideographs (U+4E00..U+9FFF) and Latin words.
// A Latin word is a maximal run of ASCII letters, so "abc123" and "使用abc"
// each count one word. Appending text never lowers the counts.
func (e Estimator) Analyze(text string) Analysis {
	var a Analysis

	inWord := false
	for _, r := range text {
		if r >= 0x4e00 && r <= 0x9fff {
			a.CJKChars++
		}
		if isASCIILetter(r) {
			if !inWord {
				a.LatinWords++
				inWord = true
			}
			continue
		}
		inWord = false
	}

	a.TotalWords = a.CJKChars + a.LatinWords
	a.Minutes = float64(a.CJKChars)/e.cjkPerMinute + float64(a.LatinWords)/e.latinPerMinute
	return a
}

// Minutes is shorthand for Analyze(text).Minutes.
func (e Estimator) Minutes(text string) float64 {
	return e.Analyze(text).Minutes
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
