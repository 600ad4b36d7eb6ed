package service

import (
	"context"
	"log/slog"
	"path/filepath"
)

// IngestFile ingests a file dropped into the inbox. The title comes from
// the file name unless the document carries its own.
func (s *IngestService) IngestFile(ctx context.Context, path string) error {
	res, err := s.Submit(ctx, IngestRequest{
		FilePath: path,
		FileName: filepath.Base(path),
	})
	if err != nil {
		return err
	}
	s.logger.Info("inbox submission accepted",
		slog.String("book_id", res.Book.ID),
		slog.String("route", string(res.Route)),
		slog.String("title", res.Book.Title),
	)
	return nil
}
