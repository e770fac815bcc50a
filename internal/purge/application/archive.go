package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/felixgeelhaar/tweetsweep/internal/purge/domain"
	"github.com/felixgeelhaar/tweetsweep/internal/shared/infrastructure/security"
)

// archiveTweet is one record of the account export. Ids arrive either as a
// JSON number or a string, so they are kept raw until normalised.
type archiveTweet struct {
	ID        json.RawMessage `json:"id"`
	IDStr     string          `json:"id_str"`
	FullText  string          `json:"full_text"`
	Text      string          `json:"text"`
	CreatedAt string          `json:"created_at"`
}

// archiveEntry is either {"tweet": {...}} or the record itself.
type archiveEntry struct {
	Tweet *archiveTweet `json:"tweet"`
	archiveTweet
}

// ArchiveSource reads candidates from a downloaded account archive
// (data/tweets.js) instead of the paginated API.
type ArchiveSource struct {
	path   string
	logger *slog.Logger
}

// NewArchiveSource creates a source for the archive at path.
func NewArchiveSource(path string, logger *slog.Logger) *ArchiveSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveSource{path: path, logger: logger}
}

// Items parses the archive. A missing file is domain.ErrArchiveNotFound.
func (s *ArchiveSource) Items(ctx context.Context) ([]domain.Item, error) {
	data, err := security.SafeReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrArchiveNotFound, s.path)
		}
		return nil, fmt.Errorf("read archive: %w", err)
	}

	items, skipped, err := parseArchive(data)
	if err != nil {
		return nil, fmt.Errorf("parse archive %s: %w", s.path, err)
	}
	if skipped > 0 {
		s.logger.WarnContext(ctx, "archive entries without id skipped", "count", skipped)
	}
	s.logger.InfoContext(ctx, "loaded archive", "path", s.path, "count", len(items))
	return items, nil
}

// parseArchive decodes the export body and returns the items plus the
// number of entries dropped for lacking an id.
func parseArchive(data []byte) ([]domain.Item, int, error) {
	body := stripAssignment(data)

	var entries []archiveEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, 0, err
	}

	items := make([]domain.Item, 0, len(entries))
	skipped := 0
	for _, entry := range entries {
		record := entry.archiveTweet
		if entry.Tweet != nil {
			record = *entry.Tweet
		}

		id := normaliseID(record.ID)
		if id == "" {
			id = strings.TrimSpace(record.IDStr)
		}
		if id == "" {
			skipped++
			continue
		}

		text := record.FullText
		if text == "" {
			text = record.Text
		}
		items = append(items, domain.Item{ID: id, Text: text, CreatedAt: record.CreatedAt})
	}
	return items, skipped, nil
}

// stripAssignment removes the "window.YTD.tweet.part0 = " prefix and a
// trailing semicolon.
func stripAssignment(data []byte) []byte {
	body := bytes.TrimSpace(data)
	if bytes.HasPrefix(body, []byte("window.")) {
		if i := bytes.IndexByte(body, '='); i >= 0 {
			body = bytes.TrimSpace(body[i+1:])
		}
	}
	body = bytes.TrimSuffix(body, []byte(";"))
	return bytes.TrimSpace(body)
}

// normaliseID turns a raw id into its decimal string form. Number literals
// are copied verbatim so large ids keep every digit.
func normaliseID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return ""
	}
	return n.String()
}
