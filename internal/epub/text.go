package epub

import (
	"fmt"
	"io/fs"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/listenupapp/listenup-ingest/internal/textseg"
)

// ChapterText converts a chapter's XHTML to plain text.
func ChapterText(fsys fs.FS, filePath string) (string, error) {
	data, err := readHref(fsys, filePath)
	if err != nil {
		return "", fmt.Errorf("read chapter %s: %w", filePath, err)
	}

	markdown, err := htmltomarkdown.ConvertString(string(data))
	if err != nil {
		return "", fmt.Errorf("convert chapter %s: %w", filePath, err)
	}
	return strings.TrimSpace(textseg.MarkdownToText(markdown)), nil
}
