package api

import (
	"strings"

	"github.com/listenupapp/listenup-ingest/internal/search"
)

// parseTypes turns a comma-separated type list into index document types.
// Unknown names are ignored.
func parseTypes(raw string) []string {
	var types []string
	for t := range strings.SplitSeq(raw, ",") {
		switch strings.TrimSpace(t) {
		case "book":
			types = append(types, string(search.DocTypeBook))
		case "chapter":
			types = append(types, string(search.DocTypeChapter))
		}
	}
	return types
}

// audioContentType maps an audio file extension to its MIME type.
func audioContentType(path string) string {
	switch strings.ToLower(path[strings.LastIndexByte(path, '.')+1:]) {
	case "mp3":
		return "audio/mpeg"
	case "m4a", "m4b", "mp4", "aac":
		return "audio/mp4"
	case "ogg", "opus":
		return "audio/ogg"
	case "wav":
		return "audio/wav"
	case "flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

// isSafeID rejects path separators and traversal in route parameters.
func isSafeID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
