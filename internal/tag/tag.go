// Package tag attaches free-text tags to article pages.
package tag

import (
	"article-service/internal/domain"
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"gorm.io/gorm"
)

const maxNameLength = 128

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Set replaces the tags of a page. tx lets callers run it inside their own transaction;
// nil uses the service connection.
func (s *Service) Set(ctx context.Context, tx *gorm.DB, pageID uint64, raw string) error {
	if tx == nil {
		tx = s.db
	}
	tx = tx.WithContext(ctx)

	if err := tx.Where("page_id = ?", pageID).Delete(&domain.Tag{}).Error; err != nil {
		return err
	}

	names := Parse(raw)
	if len(names) == 0 {
		return nil
	}
	tags := make([]domain.Tag, 0, len(names))
	for _, name := range names {
		tags = append(tags, domain.Tag{Name: name, PageID: pageID})
	}
	return tx.Create(&tags).Error
}

// Get returns the tag names of a page in insertion order.
func (s *Service) Get(ctx context.Context, pageID uint64) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Model(&domain.Tag{}).
		Where("page_id = ?", pageID).
		Order("id ASC").
		Pluck("name", &names).Error
	return names, err
}

// Parse splits a tag string on commas and whitespace, dropping duplicates.
func Parse(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})

	seen := make(map[string]struct{}, len(fields))
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) > maxNameLength {
			f = string([]rune(f)[:maxNameLength])
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		names = append(names, f)
	}
	return names
}

func Join(names []string) string {
	return strings.Join(names, " ")
}
