package textseg

import (
	"regexp"
	"strings"
)

type rewrite struct {
	re   *regexp.Regexp
	repl string
}

// Order matters: fenced code goes before inline code, images before links.
var markdownRewrites = []rewrite{
	{regexp.MustCompile("```[\\s\\S]*?```"), ""},
	{regexp.MustCompile("`[^`]+`"), ""},
	{regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`), ""},
	{regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`), "$1"},
	{regexp.MustCompile(`<[^>]+>`), ""},
	{regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+`), ""},
	{regexp.MustCompile(`(?m)^[ \t]*[-=_*—]{3,}[ \t]*$`), ""},
	{regexp.MustCompile(`(?m)^[ \t]*[*+-][ \t]+`), ""},
	{regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]+`), ""},
	{regexp.MustCompile(`(?m)^[ \t]*>[ \t]+`), ""},
}

var emphasisRewrites = []rewrite{
	{regexp.MustCompile(`\*\*\*([^\n]+?)\*\*\*`), "$1"},
	{regexp.MustCompile(`\*\*([^\n]+?)\*\*`), "$1"},
	{regexp.MustCompile(`\*([^\n]+?)\*`), "$1"},
	{regexp.MustCompile(`___([^\n]+?)___`), "$1"},
	{regexp.MustCompile(`__([^\n]+?)__`), "$1"},
	{regexp.MustCompile(`_([^\n]+?)_`), "$1"},
}

var (
	tableRow    = regexp.MustCompile(`\|[^\n]+\|`)
	extraBlank  = regexp.MustCompile(`\n{3,}`)
	blankLine   = regexp.MustCompile(`(?m)^[ \t]*\n`)
	copyrightRe = regexp.MustCompile(`(protected by copyright\.|受版权保护。)\s*$`)
	quotedSpan  = regexp.MustCompile(`(?s)["“](.*?)["”]`)
	kindleRe    = regexp.MustCompile(`Kindle Edition\.\s*$`)
)

// MarkdownToText strips Markdown and HTML markup, keeping readable text.
// Plain text passes through with only blank lines removed.
func MarkdownToText(md string) string {
	text := md
	for _, rw := range markdownRewrites {
		text = rw.re.ReplaceAllString(text, rw.repl)
	}
	// Two passes unwrap nested emphasis such as ***__x__***.
	for range 2 {
		for _, rw := range emphasisRewrites {
			text = rw.re.ReplaceAllString(text, rw.repl)
		}
	}
	text = tableRow.ReplaceAllString(text, "")
	text = extraBlank.ReplaceAllString(text, "\n\n")
	text = blankLine.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// CleanCopyright handles highlights exported from e-readers. When the text
// ends with a copyright notice, only the first quoted span is kept. A final
// line ending in "Kindle Edition." is dropped.
func CleanCopyright(text string) string {
	if copyrightRe.MatchString(text) {
		if m := quotedSpan.FindStringSubmatch(text); m != nil {
			text = strings.TrimSpace(m[1])
		}
	}

	if kindleRe.MatchString(text) {
		if lines := strings.Split(text, "\n"); len(lines) > 1 {
			text = strings.Join(lines[:len(lines)-1], "\n")
		}
	}

	return text
}

// Clean runs the full manuscript cleanup: copyright trailer, then Markdown.
func Clean(text string) string {
	return MarkdownToText(CleanCopyright(text))
}
