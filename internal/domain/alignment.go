package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// AlignmentEntry maps a span of text to a time range in seconds.
type AlignmentEntry struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Alignment is one chapter's ordered alignment sequence.
type Alignment []AlignmentEntry

// AlignmentDoc decodes either alignment file shape: a bare array of entries
// or an object wrapping them as {"segments": [...]}. Both resolve to Entries.
type AlignmentDoc struct {
	Entries Alignment
	// Wrapped is true when the source used the {"segments": [...]} form.
	Wrapped bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *AlignmentDoc) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty alignment document")
	}

	switch trimmed[0] {
	case '[':
		var entries Alignment
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return err
		}
		d.Entries, d.Wrapped = entries, false
		return nil
	case '{':
		var wrapped struct {
			Segments *Alignment `json:"segments"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return err
		}
		if wrapped.Segments == nil {
			return fmt.Errorf("alignment object has no segments key")
		}
		d.Entries, d.Wrapped = *wrapped.Segments, true
		return nil
	default:
		return fmt.Errorf("alignment must be an array or an object with segments")
	}
}

// MarshalJSON always writes the canonical array form.
func (d AlignmentDoc) MarshalJSON() ([]byte, error) {
	if d.Entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d.Entries)
}

// ParseAlignment decodes an alignment file in either shape.
func ParseAlignment(data []byte) (Alignment, error) {
	var doc AlignmentDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse alignment: %w", err)
	}
	return doc.Entries, nil
}

// Validate checks that start is non-decreasing and no entry ends before it starts.
func (a Alignment) Validate() error {
	prev := math.Inf(-1)
	for i, e := range a {
		if e.End < e.Start {
			return fmt.Errorf("alignment entry %d ends (%.3f) before it starts (%.3f)", i, e.End, e.Start)
		}
		if e.Start < prev {
			return fmt.Errorf("alignment entry %d starts at %.3f, before previous start %.3f", i, e.Start, prev)
		}
		prev = e.Start
	}
	return nil
}

// LastEnd returns the largest end time, or 0 for an empty sequence.
func (a Alignment) LastEnd() float64 {
	var end float64
	for _, e := range a {
		end = math.Max(end, e.End)
	}
	return end
}

// Shift returns a copy with every timestamp moved by offset seconds.
func (a Alignment) Shift(offset float64) Alignment {
	out := make(Alignment, len(a))
	for i, e := range a {
		out[i] = AlignmentEntry{Text: e.Text, Start: Round3(e.Start + offset), End: Round3(e.End + offset)}
	}
	return out
}

// Round3 rounds seconds to millisecond precision.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Round2 rounds seconds to centisecond precision, used for manifest durations.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
