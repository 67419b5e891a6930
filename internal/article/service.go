package article

import (
	"article-service/internal/domain"
	"article-service/internal/errors"
	"article-service/internal/metrics"
	"article-service/internal/render"
	"article-service/internal/search"
	"article-service/internal/tag"
	"article-service/internal/utils"
	"article-service/internal/worker"
	"article-service/redis"
	"context"
	defError "errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Service interface {
	Create(ctx context.Context, author *domain.User, input CreateInput) (*domain.Page, error)
	Update(ctx context.Context, name string, author *domain.User, input UpdateInput) error
	Revert(ctx context.Context, name string, revisionID uint64, author *domain.User) error
	Delete(ctx context.Context, name string) error
	SetPrivate(ctx context.Context, name string) (*domain.Page, error)
	HideDisplayName(ctx context.Context, name string) (*domain.Page, error)
	SwitchRenderer(ctx context.Context, name string) (*domain.Page, error)
	AddVote(ctx context.Context, name string, voter *domain.User, like bool) error
	ShowPage(ctx context.Context, name string) (*domain.Page, error)
	ShowRevision(ctx context.Context, page *domain.Page, revisionID uint64, mustExist bool) (*domain.Revision, error)
	ReadPage(ctx context.Context, name string, revisionID uint64) (*PageView, error)
	List(ctx context.Context) ([]PageListItem, error)
	ListRevisions(ctx context.Context, name string, page, pageSize int) (*RevisionHistory, error)
	VoteCounts(ctx context.Context, pageID uint64) (up int64, down int64, err error)
	PageOwner(ctx context.Context, name string) (uint64, error)
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, data []byte, importer *domain.User) error
}

// PageObserver is told about page lifecycle events. PageCreated runs before the
// page is stored and may set fields on it; an error aborts the create.
type PageObserver interface {
	PageCreated(ctx context.Context, page *domain.Page, author *domain.User) error
	PageDeleted(ctx context.Context, page *domain.Page) error
}

// TaskRunner runs work after the current request. *worker.WorkerPool satisfies it.
type TaskRunner interface {
	Submit(name string, t worker.Task)
}

type TagReader interface {
	Get(ctx context.Context, pageID uint64) ([]string, error)
}

type CreateInput struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name" binding:"max=128"`
	Content     string `json:"content" binding:"required"`
	Summary     string `json:"summary" binding:"max=128"`
	Tags        string `json:"tags"`
}

type UpdateInput struct {
	DisplayName string `json:"display_name" binding:"max=128"`
	Content     string `json:"content"`
	Summary     string `json:"summary" binding:"max=128"`
	Tags        string `json:"tags"`
}

type PageListItem struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

type PageView struct {
	Page     *domain.Page     `json:"page"`
	Revision *domain.Revision `json:"revision"`
	Renderer string           `json:"renderer"`
	HTML     string           `json:"html"`
	Tags     []string         `json:"tags"`
	Likes    int64            `json:"likes"`
	Dislikes int64            `json:"dislikes"`
}

type RevisionHistory struct {
	Page *domain.Page    `json:"page"`
	Data []RevisionEntry `json:"data"`
	Meta HistoryMeta     `json:"meta"`
}

type HistoryMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

const (
	listVersionKey = "articles:list:version"
	searchCategory = "article"
)

type DefaultService struct {
	repository      Repository
	tags            TagReader
	indexer         search.Indexer
	runner          TaskRunner
	cache           *redis.Cache
	observers       []PageObserver
	baseURL         string
	defaultRenderer string
}

func NewService(
	repository Repository,
	tags TagReader,
	indexer search.Indexer,
	runner TaskRunner,
	cache *redis.Cache,
	observers []PageObserver,
	baseURL string,
	defaultRenderer string,
) Service {
	if indexer == nil {
		indexer = search.Noop{}
	}
	if defaultRenderer == "" {
		defaultRenderer = render.HTML
	}
	return &DefaultService{
		repository:      repository,
		tags:            tags,
		indexer:         indexer,
		runner:          runner,
		cache:           cache,
		observers:       observers,
		baseURL:         strings.TrimRight(baseURL, "/"),
		defaultRenderer: defaultRenderer,
	}
}

func (s *DefaultService) Create(ctx context.Context, author *domain.User, input CreateInput) (page *domain.Page, err error) {
	defer metrics.Observe("create", time.Now(), &err)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.BadRequest("Page name cannot be empty", nil)
	}

	_, err = s.repository.FindByName(ctx, name)
	if err == nil {
		return nil, errors.Conflict("Page already exists", domain.ErrPageAlreadyExists)
	}
	if !defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	renderer, err := s.repository.FindRendererByName(ctx, s.defaultRenderer)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("default renderer %s: %w", s.defaultRenderer, err))
	}

	displayName := input.DisplayName
	if displayName == "" {
		displayName = name
	}
	page = domain.NewPage(name, displayName)
	page.RendererID = renderer.ID

	linked := make([]PageObserver, 0, len(s.observers))
	for _, o := range s.observers {
		if err = o.PageCreated(ctx, page, author); err != nil {
			s.unlink(ctx, page, linked)
			return nil, err
		}
		linked = append(linked, o)
	}

	revision := &domain.Revision{
		Content: input.Content,
		Summary: input.Summary,
		UserID:  author.ID,
	}
	if err = s.repository.CreatePage(ctx, page, revision, input.Tags); err != nil {
		s.unlink(ctx, page, linked)
		if defError.Is(err, domain.ErrPageAlreadyExists) {
			return nil, errors.Conflict("Page already exists", err)
		}
		return nil, err
	}

	log.Info().Str("page", page.Name).Uint64("user_id", author.ID).Msg("article page created")
	s.cache.IncrementVersion(ctx, listVersionKey)
	s.index(ctx, page, revision, author.Name)
	return page, nil
}

// unlink removes the resources observers created for a page that was never stored.
func (s *DefaultService) unlink(ctx context.Context, page *domain.Page, linked []PageObserver) {
	for _, o := range linked {
		if err := o.PageDeleted(ctx, page); err != nil {
			log.Error().Err(err).Str("page", page.Name).Msg("observer cleanup after failed create")
		}
	}
}

// Update appends a revision. Empty content deletes the page instead.
func (s *DefaultService) Update(ctx context.Context, name string, author *domain.User, input UpdateInput) (err error) {
	defer metrics.Observe("update", time.Now(), &err)

	page, err := s.ShowPage(ctx, name)
	if err != nil {
		return err
	}
	return s.update(ctx, page, author, input)
}

func (s *DefaultService) update(ctx context.Context, page *domain.Page, author *domain.User, input UpdateInput) error {
	if input.Content == "" {
		return s.delete(ctx, page)
	}

	if input.DisplayName != "" {
		page.DisplayName = input.DisplayName
	}
	revision := &domain.Revision{
		Content: input.Content,
		Summary: input.Summary,
		UserID:  author.ID,
	}
	if err := s.repository.AppendRevision(ctx, page, revision, input.Tags); err != nil {
		return err
	}

	s.cache.IncrementVersion(ctx, listVersionKey)
	if !page.Private {
		s.index(ctx, page, revision, author.Name)
	}
	return nil
}

// Revert copies an older revision forward as a new revision. History is never rewritten.
func (s *DefaultService) Revert(ctx context.Context, name string, revisionID uint64, author *domain.User) (err error) {
	defer metrics.Observe("revert", time.Now(), &err)

	page, err := s.ShowPage(ctx, name)
	if err != nil {
		return err
	}
	revision, err := s.ShowRevision(ctx, page, revisionID, true)
	if err != nil {
		return err
	}
	tags, err := s.tags.Get(ctx, page.ID)
	if err != nil {
		return err
	}

	return s.update(ctx, page, author, UpdateInput{
		Content: revision.Content,
		Summary: fmt.Sprintf("Reverted revision %d", revision.ID),
		Tags:    tag.Join(tags),
	})
}

func (s *DefaultService) Delete(ctx context.Context, name string) (err error) {
	defer metrics.Observe("delete", time.Now(), &err)

	page, err := s.ShowPage(ctx, name)
	if err != nil {
		return err
	}
	return s.delete(ctx, page)
}

func (s *DefaultService) delete(ctx context.Context, page *domain.Page) error {
	if err := s.repository.DeletePage(ctx, page.ID); err != nil {
		return err
	}
	log.Info().Str("page", page.Name).Msg("article page deleted")

	s.cache.IncrementVersion(ctx, listVersionKey)
	s.deindex(page)

	deleted := *page
	for _, o := range s.observers {
		observer := o
		s.runner.Submit("page observer cleanup", func(ctx context.Context) error {
			if err := observer.PageDeleted(ctx, &deleted); err != nil {
				log.Warn().Err(err).Str("page", deleted.Name).Msg("collaborator cleanup failed")
			}
			return nil
		})
	}
	return nil
}

// SetPrivate toggles privacy and drops the page from the search index either way.
// A page made public again is indexed on its next update.
func (s *DefaultService) SetPrivate(ctx context.Context, name string) (page *domain.Page, err error) {
	defer metrics.Observe("set_private", time.Now(), &err)

	page, err = s.ShowPage(ctx, name)
	if err != nil {
		return nil, err
	}
	page.Private = !page.Private
	if err = s.repository.UpdateColumn(ctx, page.ID, "private", page.Private); err != nil {
		return nil, err
	}
	s.deindex(page)
	return page, nil
}

func (s *DefaultService) HideDisplayName(ctx context.Context, name string) (page *domain.Page, err error) {
	defer metrics.Observe("hide_display_name", time.Now(), &err)

	page, err = s.ShowPage(ctx, name)
	if err != nil {
		return nil, err
	}
	page.HideDisplayName = !page.HideDisplayName
	if err = s.repository.UpdateColumn(ctx, page.ID, "hide_display_name", page.HideDisplayName); err != nil {
		return nil, err
	}
	return page, nil
}

// SwitchRenderer advances the page to the next renderer id, wrapping to 1.
func (s *DefaultService) SwitchRenderer(ctx context.Context, name string) (page *domain.Page, err error) {
	defer metrics.Observe("switch_renderer", time.Now(), &err)

	page, err = s.ShowPage(ctx, name)
	if err != nil {
		return nil, err
	}
	count, err := s.repository.RendererCount(ctx)
	if err != nil {
		return nil, err
	}
	if page.RendererID >= uint64(count) {
		page.RendererID = 1
	} else {
		page.RendererID++
	}
	if err = s.repository.UpdateColumn(ctx, page.ID, "renderer_id", page.RendererID); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *DefaultService) AddVote(ctx context.Context, name string, voter *domain.User, like bool) (err error) {
	defer metrics.Observe("vote", time.Now(), &err)

	page, err := s.ShowPage(ctx, name)
	if err != nil {
		return err
	}
	err = s.repository.AddVote(ctx, &domain.Vote{PageID: page.ID, UserID: voter.ID, Like: like})
	if defError.Is(err, domain.ErrAlreadyVoted) {
		return errors.Conflict("You already voted for this page", err)
	}
	return err
}

func (s *DefaultService) ShowPage(ctx context.Context, name string) (*domain.Page, error) {
	page, err := s.repository.FindByName(ctx, name)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Page not found", domain.ErrPageNotFound)
		}
		return nil, err
	}
	return page, nil
}

// ShowRevision returns the given revision, or the latest one when revisionID is 0.
// A missing revision is an error only when mustExist is set.
func (s *DefaultService) ShowRevision(ctx context.Context, page *domain.Page, revisionID uint64, mustExist bool) (*domain.Revision, error) {
	var (
		revision *domain.Revision
		err      error
	)
	if revisionID == 0 {
		revision, err = s.repository.LatestRevision(ctx, page.ID)
	} else {
		revision, err = s.repository.FindRevision(ctx, page.ID, revisionID)
	}

	if defError.Is(err, gorm.ErrRecordNotFound) {
		if mustExist {
			return nil, errors.NotFound("Revision not found", domain.ErrRevisionNotFound)
		}
		return nil, nil
	}
	return revision, err
}

func (s *DefaultService) ReadPage(ctx context.Context, name string, revisionID uint64) (*PageView, error) {
	page, err := s.ShowPage(ctx, name)
	if err != nil {
		return nil, err
	}
	revision, err := s.ShowRevision(ctx, page, revisionID, true)
	if err != nil {
		return nil, err
	}

	view := &PageView{Page: page, Revision: revision}
	view.Renderer = s.rendererName(ctx, page)
	view.HTML, err = render.Render(view.Renderer, revision.Content)
	if err != nil {
		log.Warn().Err(err).Str("page", page.Name).Msg("render failed")
	}
	if view.Tags, err = s.tags.Get(ctx, page.ID); err != nil {
		return nil, err
	}
	if view.Likes, view.Dislikes, err = s.repository.VoteCounts(ctx, page.ID); err != nil {
		return nil, err
	}

	if err := s.repository.IncrementViewCount(ctx, page.ID); err != nil {
		log.Warn().Err(err).Str("page", page.Name).Msg("view count update failed")
	} else {
		page.ViewCount++
	}
	return view, nil
}

// List returns every page ordered by name. An empty store is PageNotFound.
func (s *DefaultService) List(ctx context.Context) ([]PageListItem, error) {
	v := s.cache.GetVersion(ctx, listVersionKey)
	cacheKey := fmt.Sprintf("articles:list:v:%d", v)

	var items []PageListItem
	if found, _ := s.cache.Get(ctx, cacheKey, &items); found && len(items) > 0 {
		return items, nil
	}

	pages, err := s.repository.ListPages(ctx)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, errors.NotFound("No pages", domain.ErrPageNotFound)
	}

	items = make([]PageListItem, 0, len(pages))
	for _, p := range pages {
		items = append(items, PageListItem{Name: p.Name, DisplayName: p.DisplayName})
	}
	s.cache.Set(ctx, cacheKey, items, time.Hour)
	return items, nil
}

func (s *DefaultService) ListRevisions(ctx context.Context, name string, page, pageSize int) (*RevisionHistory, error) {
	p, err := s.ShowPage(ctx, name)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = utils.DefaultPageSize
	}
	entries, total, err := s.repository.ListRevisions(ctx, p.ID, page, pageSize)
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize != 0 {
		totalPages++
	}
	return &RevisionHistory{
		Page: p,
		Data: entries,
		Meta: HistoryMeta{Page: page, PageSize: pageSize, Total: total, TotalPages: totalPages},
	}, nil
}

func (s *DefaultService) VoteCounts(ctx context.Context, pageID uint64) (int64, int64, error) {
	return s.repository.VoteCounts(ctx, pageID)
}

// PageOwner returns the author of the page's first revision.
func (s *DefaultService) PageOwner(ctx context.Context, name string) (uint64, error) {
	page, err := s.ShowPage(ctx, name)
	if err != nil {
		return 0, err
	}
	revision, err := s.repository.FirstRevision(ctx, page.ID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return 0, errors.NotFound("Revision not found", domain.ErrRevisionNotFound)
		}
		return 0, err
	}
	return revision.UserID, nil
}

func (s *DefaultService) rendererName(ctx context.Context, page *domain.Page) string {
	renderer, err := s.repository.FindRendererByID(ctx, page.RendererID)
	if err != nil {
		log.Warn().Err(err).Uint64("renderer_id", page.RendererID).Msg("unknown renderer, using default")
		return s.defaultRenderer
	}
	return renderer.Name
}

func (s *DefaultService) pageURL(name string) string {
	return s.baseURL + "/article/item/" + url.PathEscape(name)
}

// index builds the search document now and ships it to the indexer in the background.
func (s *DefaultService) index(ctx context.Context, page *domain.Page, revision *domain.Revision, username string) {
	tags, err := s.tags.Get(ctx, page.ID)
	if err != nil {
		log.Warn().Err(err).Str("page", page.Name).Msg("tag lookup for search index failed")
	}

	html, err := render.Render(s.rendererName(ctx, page), revision.Content)
	if err != nil {
		html = ""
	}

	doc := search.Document{
		Title:    page.DisplayName,
		URL:      s.pageURL(page.Name),
		Content:  render.StripTags(html),
		Tags:     tags,
		Created:  revision.CreatedAt,
		Category: searchCategory,
		Name:     page.Name,
		Username: username,
	}
	s.runner.Submit("search upsert", func(ctx context.Context) error {
		err := s.indexer.Upsert(ctx, doc)
		metrics.IndexTask("upsert", err)
		return err
	})
}

func (s *DefaultService) deindex(page *domain.Page) {
	pageURL := s.pageURL(page.Name)
	s.runner.Submit("search delete", func(ctx context.Context) error {
		err := s.indexer.Delete(ctx, pageURL)
		metrics.IndexTask("delete", err)
		return err
	})
}
