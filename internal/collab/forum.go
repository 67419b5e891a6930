package collab

import (
	"article-service/internal/domain"
	"context"
	"fmt"
)

// Forum opens a discussion thread for every new page and removes it with the page.
type Forum struct {
	client httpClient
}

func NewForum(baseURL string) *Forum {
	return &Forum{client: newHTTPClient(baseURL)}
}

type threadRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Author      string `json:"author"`
	AddPost     bool   `json:"add_post"`
}

func (f *Forum) PageCreated(ctx context.Context, page *domain.Page, author *domain.User) error {
	id, err := f.client.create(ctx, "/internal/threads", threadRequest{
		Name:        page.Name,
		DisplayName: page.DisplayName,
		Author:      author.Name,
	})
	if err != nil {
		return fmt.Errorf("forum: %w", err)
	}
	page.ThreadID = id
	return nil
}

func (f *Forum) PageDeleted(ctx context.Context, page *domain.Page) error {
	if page.ThreadID == domain.NoLink {
		return nil
	}
	return f.client.delete(ctx, fmt.Sprintf("/internal/threads/%d", page.ThreadID))
}
