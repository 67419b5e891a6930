// Package search keeps the site-wide search index in step with article pages.
package search

import (
	"context"
	"time"
)

// Document is what the index stores for one page, keyed by URL.
type Document struct {
	Title    string
	URL      string
	Content  string
	Tags     []string
	Created  time.Time
	Category string
	Name     string
	Username string
}

type Indexer interface {
	Upsert(ctx context.Context, doc Document) error
	Delete(ctx context.Context, url string) error
}

// Noop is used when no search backend is configured.
type Noop struct{}

func (Noop) Upsert(context.Context, Document) error { return nil }
func (Noop) Delete(context.Context, string) error   { return nil }
