package article

import (
	"article-service/internal/domain"
	"article-service/internal/errors"
	"article-service/internal/metrics"
	"article-service/internal/tag"
	"context"
	"encoding/json"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

const (
	exportTimeLayout = "2006-01-02T15:04:05.999999"
	importTimeLayout = "2006-01-02T15:04:05"
	maxColumnLength  = 128
)

// fallbackTime replaces timestamps that are missing or unparseable in a backup.
var fallbackTime = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

type backupPage struct {
	ID              uint64           `json:"id"`
	Name            string           `json:"name"`
	DisplayName     string           `json:"display_name"`
	HideDisplayName bool             `json:"hide_display_name"`
	Created         string           `json:"created"`
	Private         bool             `json:"private"`
	ViewCount       int64            `json:"view_count"`
	ThreadID        int64            `json:"thread_id"`
	AlbumID         int64            `json:"album_id"`
	RendererID      uint64           `json:"renderer_id"`
	Tags            []string         `json:"tags"`
	Revisions       []backupRevision `json:"revisions"`
}

type backupRevision struct {
	ID      uint64 `json:"id"`
	PageID  uint64 `json:"page_id"`
	Article string `json:"article"`
	Summary string `json:"summary"`
	UserID  uint64 `json:"user_id"`
	Created string `json:"created"`
}

// Export dumps every page with its tags and revisions, newest revision first.
func (s *DefaultService) Export(ctx context.Context) (data []byte, err error) {
	defer metrics.Observe("export", time.Now(), &err)

	pages, err := s.repository.ListPages(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]backupPage, 0, len(pages))
	for _, p := range pages {
		tags, err := s.tags.Get(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		revisions, err := s.repository.AllRevisions(ctx, p.ID)
		if err != nil {
			return nil, err
		}

		bp := backupPage{
			ID:              p.ID,
			Name:            p.Name,
			DisplayName:     p.DisplayName,
			HideDisplayName: p.HideDisplayName,
			Created:         formatTime(p.CreatedAt),
			Private:         p.Private,
			ViewCount:       p.ViewCount,
			ThreadID:        p.ThreadID,
			AlbumID:         p.AlbumID,
			RendererID:      p.RendererID,
			Tags:            tags,
			Revisions:       make([]backupRevision, 0, len(revisions)),
		}
		if bp.Tags == nil {
			bp.Tags = []string{}
		}
		for _, r := range revisions {
			bp.Revisions = append(bp.Revisions, backupRevision{
				ID:      r.ID,
				PageID:  r.PageID,
				Article: r.Content,
				Summary: r.Summary,
				UserID:  r.UserID,
				Created: formatTime(r.CreatedAt),
			})
		}
		out = append(out, bp)
	}

	return json.MarshalIndent(out, "", "  ")
}

// Import replaces every page with the contents of a backup document. Fields that are
// unknown, unassignable or of the wrong type are skipped; the rest of the row still loads.
func (s *DefaultService) Import(ctx context.Context, data []byte, importer *domain.User) (err error) {
	defer metrics.Observe("import", time.Now(), &err)

	var rows []map[string]json.RawMessage
	if err = json.Unmarshal(data, &rows); err != nil {
		return errors.BadRequest("Backup must be a JSON array of pages", err)
	}

	renderers, err := s.repository.RendererIDs(ctx)
	if err != nil {
		return err
	}
	users, err := s.repository.UserIDs(ctx)
	if err != nil {
		return err
	}

	decoder := importDecoder{renderers: renderers, users: users, fallbackUser: importer.ID}
	pages := make([]ImportedPage, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		imported, ok := decoder.page(row)
		if !ok {
			log.Warn().Int("row", i).Msg("backup row without a usable name, skipping")
			continue
		}
		key := strings.ToLower(imported.Page.Name)
		if seen[key] {
			log.Warn().Int("row", i).Str("page", imported.Page.Name).Msg("duplicate page in backup, skipping")
			continue
		}
		seen[key] = true
		pages = append(pages, imported)
	}

	removed, err := s.repository.ReplaceAll(ctx, pages)
	if err != nil {
		return err
	}
	log.Info().Int("removed", len(removed)).Int("imported", len(pages)).Msg("article backup restored")

	s.cache.IncrementVersion(ctx, listVersionKey)
	for i := range removed {
		s.deindex(&removed[i])
	}
	for _, imported := range pages {
		if imported.Page.Private || len(imported.Revisions) == 0 {
			continue
		}
		latest := newestRevision(imported.Revisions)
		username, err := s.repository.UserName(ctx, latest.UserID)
		if err != nil {
			log.Warn().Err(err).Uint64("user_id", latest.UserID).Msg("author lookup failed")
		}
		s.index(ctx, imported.Page, latest, username)
	}
	return nil
}

type importDecoder struct {
	renderers    map[uint64]bool
	users        map[uint64]bool
	fallbackUser uint64
}

func (d importDecoder) page(row map[string]json.RawMessage) (ImportedPage, bool) {
	page := domain.NewPage("", "")
	page.CreatedAt = fallbackTime
	imported := ImportedPage{Page: page}

	for key, raw := range row {
		switch key {
		case "name":
			decodeString(raw, &page.Name)
		case "display_name":
			decodeString(raw, &page.DisplayName)
		case "hide_display_name":
			decodeInto(raw, &page.HideDisplayName)
		case "created":
			page.CreatedAt = parseTime(raw)
		case "private":
			decodeInto(raw, &page.Private)
		case "view_count":
			decodeInto(raw, &page.ViewCount)
		case "thread_id":
			decodeInto(raw, &page.ThreadID)
		case "album_id":
			decodeInto(raw, &page.AlbumID)
		case "renderer_id":
			var id uint64
			if decodeInto(raw, &id) && d.renderers[id] {
				page.RendererID = id
			}
		case "tags":
			imported.Tags = decodeTags(raw)
		case "revisions":
			imported.Revisions = d.revisions(raw)
		}
	}

	page.Name = strings.TrimSpace(page.Name)
	if page.Name == "" {
		return ImportedPage{}, false
	}
	if page.DisplayName == "" {
		page.DisplayName = page.Name
	}
	if page.RendererID == 0 {
		page.RendererID = 1
	}
	return imported, true
}

func (d importDecoder) revisions(raw json.RawMessage) []domain.Revision {
	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil
	}

	revisions := make([]domain.Revision, 0, len(rows))
	for _, row := range rows {
		rev := domain.Revision{UserID: d.fallbackUser, CreatedAt: fallbackTime}
		for key, value := range row {
			switch key {
			case "article":
				decodeInto(value, &rev.Content)
			case "summary":
				decodeString(value, &rev.Summary)
			case "user_id":
				var id uint64
				if decodeInto(value, &id) && d.users[id] {
					rev.UserID = id
				}
			case "created":
				rev.CreatedAt = parseTime(value)
			}
		}
		revisions = append(revisions, rev)
	}

	// Backups list revisions newest first. Insert oldest first so ids grow with age
	// and revisions sharing a timestamp keep their order.
	slices.Reverse(revisions)
	slices.SortStableFunc(revisions, func(a, b domain.Revision) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return revisions
}

// decodeTags accepts either a list of names or a single free-text string.
func decodeTags(raw json.RawMessage) string {
	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		return tag.Join(names)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return ""
}

func decodeInto(raw json.RawMessage, dest interface{}) bool {
	return json.Unmarshal(raw, dest) == nil
}

// decodeString also truncates to the column width.
func decodeString(raw json.RawMessage, dest *string) {
	var s string
	if !decodeInto(raw, &s) {
		return
	}
	*dest = truncate(s, maxColumnLength)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// parseTime drops everything from the first '.' and parses the remainder as a
// zone-less UTC timestamp, falling back to 1900-01-01.
func parseTime(raw json.RawMessage) time.Time {
	var s string
	if !decodeInto(raw, &s) {
		return fallbackTime
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse(importTimeLayout, s)
	if err != nil {
		return fallbackTime
	}
	return t
}

func formatTime(t time.Time) string {
	return t.UTC().Format(exportTimeLayout)
}

// newestRevision relies on revisions being sorted oldest first.
func newestRevision(revisions []domain.Revision) *domain.Revision {
	return &revisions[len(revisions)-1]
}
