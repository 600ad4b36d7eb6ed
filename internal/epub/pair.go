package epub

import (
	"fmt"

	"github.com/listenupapp/listenup-ingest/internal/archive"
	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/errors"
)

// Pairing reports how eligible chapters lined up with alignment ids.
type Pairing struct {
	Eligible   int
	Alignments int
	Paired     int
}

// Mismatch reports whether the two counts differ.
func (p Pairing) Mismatch() bool {
	return p.Eligible != p.Alignments
}

// Pair assigns alignment ids to Chapter and Content items by position: the
// i-th eligible item gets the i-th id. Items or ids beyond the shorter list
// stay unpaired. With strict set, differing counts are a FORMAT error and
// nothing is paired.
func Pair(s *domain.EpubStructure, alignIDs []string, strict bool) (Pairing, error) {
	var eligible []int
	for i, ch := range s.Chapters {
		if ch.Type.CarriesAudio() {
			eligible = append(eligible, i)
		}
	}

	res := Pairing{Eligible: len(eligible), Alignments: len(alignIDs)}
	if strict && res.Mismatch() {
		return res, errors.Format(fmt.Sprintf("%d content chapters but %d alignment files", res.Eligible, res.Alignments)).
			WithDetails(errors.ReasonPairingMismatch)
	}

	for n, idx := range eligible {
		if n >= len(alignIDs) {
			break
		}
		id := alignIDs[n]
		audioName, textName, alignName := archive.CanonicalNames(id, "mp3")
		ch := &s.Chapters[idx]
		ch.ID = id
		ch.HasAudio = true
		ch.AudioFile = audioName
		ch.TextFile = textName
		ch.AlignmentFile = alignName
		res.Paired++
	}
	s.TotalChapters = res.Paired
	return res, nil
}
