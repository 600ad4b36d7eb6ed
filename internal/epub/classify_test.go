package epub

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/listenupapp/listenup-ingest/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		href string
		id   string
		want domain.ChapterType
	}{
		{"cover.xhtml", "x", domain.ChapterTypeCover},
		{"Text/book_cvi_r1.xhtml", "x", domain.ChapterTypeCover},
		{"titlepage.xhtml", "x", domain.ChapterTypeTitle},
		{"book_tp_r1.xhtml", "x", domain.ChapterTypeTitle},
		{"copyright.xhtml", "x", domain.ChapterTypeCopyright},
		{"book_cop_r1.xhtml", "x", domain.ChapterTypeCopyright},
		{"toc.xhtml", "x", domain.ChapterTypeContents},
		{"Contents.xhtml", "x", domain.ChapterTypeContents},
		{"introduction.xhtml", "x", domain.ChapterTypeIntroduction},
		{"book_itr_r1.xhtml", "x", domain.ChapterTypeIntroduction},
		{"chapter01.xhtml", "x", domain.ChapterTypeChapter},
		{"book_c001_r1.xhtml", "x", domain.ChapterTypeChapter},
		{"c0012.xhtml", "x", domain.ChapterTypeChapter},
		{"part3.xhtml", "p3", domain.ChapterTypeContent},
		{"a.xhtml", "Chapter7", domain.ChapterTypeChapter},
		// Earlier rules win: a chapter titled "cover story" is a Cover.
		{"chapter_cover_story.xhtml", "x", domain.ChapterTypeCover},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.href, tt.id))
		})
	}
}
