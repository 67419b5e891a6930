package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

var ErrInvalidURL = errors.New("weaviate url must include scheme and host")

// objectStore is the slice of the weaviate data API the indexer needs.
type objectStore interface {
	Exists(ctx context.Context, class, id string) (bool, error)
	Create(ctx context.Context, class, id string, props map[string]interface{}) error
	Replace(ctx context.Context, class, id string, props map[string]interface{}) error
	Delete(ctx context.Context, class, id string) error
	EnsureClass(ctx context.Context, class *models.Class) error
}

// WeaviateIndexer stores one object per page URL. Object ids are derived from the URL,
// so an upsert for the same URL always replaces the same object.
type WeaviateIndexer struct {
	store objectStore
	class string
}

func NewWeaviateIndexer(rawURL, class string) (*WeaviateIndexer, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, ErrInvalidURL
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	log.Info().Str("host", parsed.Host).Str("class", class).Msg("search index enabled")
	return &WeaviateIndexer{store: &weaviateStore{client: client}, class: class}, nil
}

// EnsureSchema creates the page class when the instance does not have it yet.
func (w *WeaviateIndexer) EnsureSchema(ctx context.Context) error {
	if err := w.store.EnsureClass(ctx, pageClass(w.class)); err != nil {
		return fmt.Errorf("ensure class %s: %w", w.class, err)
	}
	return nil
}

func pageClass(name string) *models.Class {
	filterable := new(bool)
	*filterable = true

	text := func(prop, tokenization string) *models.Property {
		p := &models.Property{Name: prop, DataType: []string{"text"}, Tokenization: tokenization}
		if tokenization == "field" {
			p.IndexFilterable = filterable
		}
		return p
	}

	return &models.Class{
		Class:       name,
		Description: "Indexed wiki pages",
		Vectorizer:  "none",
		Properties: []*models.Property{
			text("title", "word"),
			text("url", "field"),
			text("content", "word"),
			{Name: "tags", DataType: []string{"text[]"}, IndexFilterable: filterable},
			{Name: "created", DataType: []string{"date"}},
			text("category", "field"),
			text("name", "field"),
			text("username", "field"),
		},
	}
}

// ObjectID is the deterministic index id of a page URL.
func ObjectID(pageURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(pageURL)).String()
}

func (w *WeaviateIndexer) Upsert(ctx context.Context, doc Document) error {
	id := ObjectID(doc.URL)

	exists, err := w.store.Exists(ctx, w.class, id)
	if err != nil {
		return fmt.Errorf("check index object %s: %w", doc.URL, err)
	}
	if exists {
		return w.store.Replace(ctx, w.class, id, properties(doc))
	}
	return w.store.Create(ctx, w.class, id, properties(doc))
}

// Delete removes the object for url; a missing object is not an error.
func (w *WeaviateIndexer) Delete(ctx context.Context, pageURL string) error {
	id := ObjectID(pageURL)

	exists, err := w.store.Exists(ctx, w.class, id)
	if err != nil {
		return fmt.Errorf("check index object %s: %w", pageURL, err)
	}
	if !exists {
		return nil
	}
	return w.store.Delete(ctx, w.class, id)
}

func properties(doc Document) map[string]interface{} {
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]interface{}{
		"title":    doc.Title,
		"url":      doc.URL,
		"content":  doc.Content,
		"tags":     tags,
		"created":  doc.Created.UTC().Format(time.RFC3339),
		"category": doc.Category,
		"name":     doc.Name,
		"username": doc.Username,
	}
}

type weaviateStore struct {
	client *weaviate.Client
}

func (s *weaviateStore) Exists(ctx context.Context, class, id string) (bool, error) {
	return s.client.Data().Checker().
		WithClassName(class).
		WithID(id).
		Do(ctx)
}

func (s *weaviateStore) Create(ctx context.Context, class, id string, props map[string]interface{}) error {
	_, err := s.client.Data().Creator().
		WithClassName(class).
		WithID(id).
		WithProperties(props).
		Do(ctx)
	return err
}

func (s *weaviateStore) Replace(ctx context.Context, class, id string, props map[string]interface{}) error {
	return s.client.Data().Updater().
		WithClassName(class).
		WithID(id).
		WithProperties(props).
		Do(ctx)
}

func (s *weaviateStore) Delete(ctx context.Context, class, id string) error {
	return s.client.Data().Deleter().
		WithClassName(class).
		WithID(id).
		Do(ctx)
}

func (s *weaviateStore) EnsureClass(ctx context.Context, class *models.Class) error {
	if _, err := s.client.Schema().ClassGetter().WithClassName(class.Class).Do(ctx); err == nil {
		return nil
	}
	log.Info().Str("class", class.Class).Msg("creating search class")
	return s.client.Schema().ClassCreator().WithClass(class).Do(ctx)
}
