package epub

import (
	"regexp"
	"strings"

	"github.com/listenupapp/listenup-ingest/internal/domain"
)

type classRule struct {
	typ      domain.ChapterType
	patterns []*regexp.Regexp
}

// classRules are checked in order; the first hit wins.
var classRules = []classRule{
	{domain.ChapterTypeCover, compileAll(`cover`, `_cvi_`)},
	{domain.ChapterTypeTitle, compileAll(`title`, `_tp_`)},
	{domain.ChapterTypeCopyright, compileAll(`copyright`, `_cop_`)},
	{domain.ChapterTypeContents, compileAll(`toc`, `contents?`, `inlinetoc`)},
	{domain.ChapterTypeIntroduction, compileAll(`intro`, `_itr_`)},
	{domain.ChapterTypeChapter, compileAll(`chapter`, `_c\d{3,4}_`, `^c\d{3,4}`)},
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// Classify guesses a spine item's role from its href or manifest id.
// Anything unrecognized is Content.
func Classify(href, id string) domain.ChapterType {
	href = strings.ToLower(href)
	id = strings.ToLower(id)
	for _, rule := range classRules {
		for _, re := range rule.patterns {
			if re.MatchString(href) || re.MatchString(id) {
				return rule.typ
			}
		}
	}
	return domain.ChapterTypeContent
}
