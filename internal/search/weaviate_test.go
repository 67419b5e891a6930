package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

type fakeStore struct {
	objects map[string]map[string]interface{}
	creates int
	updates int
	deletes int
	failAll error
	classes []*models.Class
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]map[string]interface{}{}}
}

func (f *fakeStore) Exists(_ context.Context, _ string, id string) (bool, error) {
	if f.failAll != nil {
		return false, f.failAll
	}
	_, ok := f.objects[id]
	return ok, nil
}

func (f *fakeStore) Create(_ context.Context, _ string, id string, props map[string]interface{}) error {
	f.creates++
	f.objects[id] = props
	return nil
}

func (f *fakeStore) Replace(_ context.Context, _ string, id string, props map[string]interface{}) error {
	f.updates++
	f.objects[id] = props
	return nil
}

func (f *fakeStore) Delete(_ context.Context, _ string, id string) error {
	f.deletes++
	delete(f.objects, id)
	return nil
}

func (f *fakeStore) EnsureClass(_ context.Context, class *models.Class) error {
	if f.failAll != nil {
		return f.failAll
	}
	f.classes = append(f.classes, class)
	return nil
}

func TestWeaviateIndexer_EnsureSchema(t *testing.T) {
	store := newFakeStore()
	idx := &WeaviateIndexer{store: store, class: "Article"}

	require.NoError(t, idx.EnsureSchema(context.Background()))
	require.Len(t, store.classes, 1)

	class := store.classes[0]
	assert.Equal(t, "Article", class.Class)
	names := make([]string, 0, len(class.Properties))
	for _, p := range class.Properties {
		names = append(names, p.Name)
	}
	for key := range properties(Document{}) {
		assert.Contains(t, names, key)
	}

	store.failAll = errors.New("down")
	assert.ErrorIs(t, idx.EnsureSchema(context.Background()), store.failAll)
}

func TestObjectID_Deterministic(t *testing.T) {
	a := ObjectID("http://localhost/article/item/Front_Page")
	b := ObjectID("http://localhost/article/item/Front_Page")
	c := ObjectID("http://localhost/article/item/Other")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestWeaviateIndexer_UpsertCreatesThenReplaces(t *testing.T) {
	store := newFakeStore()
	idx := &WeaviateIndexer{store: store, class: "Article"}
	doc := Document{
		Title:   "Front Page",
		URL:     "http://localhost/article/item/Front_Page",
		Content: "hello",
		Created: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	require.NoError(t, idx.Upsert(context.Background(), doc))
	doc.Content = "changed"
	require.NoError(t, idx.Upsert(context.Background(), doc))

	assert.Equal(t, 1, store.creates)
	assert.Equal(t, 1, store.updates)
	props := store.objects[ObjectID(doc.URL)]
	assert.Equal(t, "changed", props["content"])
	assert.Equal(t, "2024-01-02T03:04:05Z", props["created"])
	assert.Equal(t, []string{}, props["tags"])
}

func TestWeaviateIndexer_DeleteMissingIsNoop(t *testing.T) {
	store := newFakeStore()
	idx := &WeaviateIndexer{store: store, class: "Article"}

	require.NoError(t, idx.Delete(context.Background(), "http://localhost/article/item/missing"))
	assert.Zero(t, store.deletes)
}

func TestWeaviateIndexer_Delete(t *testing.T) {
	store := newFakeStore()
	idx := &WeaviateIndexer{store: store, class: "Article"}
	url := "http://localhost/article/item/Page"
	require.NoError(t, idx.Upsert(context.Background(), Document{URL: url}))

	require.NoError(t, idx.Delete(context.Background(), url))

	assert.Equal(t, 1, store.deletes)
	assert.Empty(t, store.objects)
}

func TestWeaviateIndexer_PropagatesErrors(t *testing.T) {
	store := newFakeStore()
	store.failAll = errors.New("connection refused")
	idx := &WeaviateIndexer{store: store, class: "Article"}

	err := idx.Upsert(context.Background(), Document{URL: "http://x/article/item/a"})
	assert.ErrorIs(t, err, store.failAll)
}

func TestNewWeaviateIndexer_RejectsBareHost(t *testing.T) {
	_, err := NewWeaviateIndexer("localhost:8080", "Article")
	assert.Error(t, err)
}
