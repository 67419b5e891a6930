package collab

import (
	"article-service/internal/domain"
	"context"
	"fmt"
)

// Gallery creates a media album for every new page and removes it with the page.
type Gallery struct {
	client httpClient
}

func NewGallery(baseURL string) *Gallery {
	return &Gallery{client: newHTTPClient(baseURL)}
}

type albumRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Author      string `json:"author"`
}

func (g *Gallery) PageCreated(ctx context.Context, page *domain.Page, author *domain.User) error {
	id, err := g.client.create(ctx, "/internal/albums", albumRequest{
		Name:        page.Name,
		DisplayName: page.DisplayName,
		Author:      author.Name,
	})
	if err != nil {
		return fmt.Errorf("gallery: %w", err)
	}
	page.AlbumID = id
	return nil
}

func (g *Gallery) PageDeleted(ctx context.Context, page *domain.Page) error {
	if page.AlbumID == domain.NoLink {
		return nil
	}
	return g.client.delete(ctx, fmt.Sprintf("/internal/albums/%d", page.AlbumID))
}
