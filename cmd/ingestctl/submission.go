package main

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/listenupapp/listenup-ingest/internal/archive"
	"github.com/listenupapp/listenup-ingest/internal/router"
	"github.com/listenupapp/listenup-ingest/internal/textseg"
)

// openedSubmission is a file opened the way the server opens uploads.
type openedSubmission struct {
	router.Submission
	zip *zip.ReadCloser
}

func (o *openedSubmission) Close() {
	if o.zip != nil {
		_ = o.zip.Close()
	}
}

func isManuscript(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown":
		return true
	}
	return false
}

// openSubmission reads text files as manuscripts and anything else as a
// zip container.
func openSubmission(path string) (*openedSubmission, error) {
	if isManuscript(path) {
		text, err := readManuscript(path)
		if err != nil {
			return nil, err
		}
		return &openedSubmission{Submission: router.Submission{Text: text}}, nil
	}

	zr, err := archive.OpenZip(path)
	if err != nil {
		return nil, err
	}
	return &openedSubmission{Submission: router.Submission{Archive: &zr.Reader}, zip: zr}, nil
}

func readManuscript(path string) (string, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- operator-supplied path
	if err != nil {
		return "", fmt.Errorf("read manuscript: %w", err)
	}
	text, err := textseg.DecodeManuscript(data, "")
	if err != nil {
		return "", err
	}
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		return textseg.CleanCopyright(text), nil
	}
	return textseg.Clean(text), nil
}
