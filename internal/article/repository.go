package article

import (
	"article-service/internal/domain"
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// TagStore writes tags inside the caller's transaction.
type TagStore interface {
	Set(ctx context.Context, tx *gorm.DB, pageID uint64, raw string) error
}

type Repository interface {
	FindByName(ctx context.Context, name string) (*domain.Page, error)
	ListPages(ctx context.Context) ([]domain.Page, error)
	CreatePage(ctx context.Context, page *domain.Page, revision *domain.Revision, tags string) error
	AppendRevision(ctx context.Context, page *domain.Page, revision *domain.Revision, tags string) error
	DeletePage(ctx context.Context, pageID uint64) error
	UpdateColumn(ctx context.Context, pageID uint64, column string, value interface{}) error
	IncrementViewCount(ctx context.Context, pageID uint64) error

	LatestRevision(ctx context.Context, pageID uint64) (*domain.Revision, error)
	FirstRevision(ctx context.Context, pageID uint64) (*domain.Revision, error)
	FindRevision(ctx context.Context, pageID, revisionID uint64) (*domain.Revision, error)
	AllRevisions(ctx context.Context, pageID uint64) ([]domain.Revision, error)
	ListRevisions(ctx context.Context, pageID uint64, page, pageSize int) ([]RevisionEntry, int64, error)

	AddVote(ctx context.Context, vote *domain.Vote) error
	VoteCounts(ctx context.Context, pageID uint64) (up int64, down int64, err error)

	RendererCount(ctx context.Context) (int64, error)
	FindRendererByName(ctx context.Context, name string) (*domain.Renderer, error)
	FindRendererByID(ctx context.Context, id uint64) (*domain.Renderer, error)
	RendererIDs(ctx context.Context) (map[uint64]bool, error)

	UserName(ctx context.Context, userID uint64) (string, error)
	UserIDs(ctx context.Context) (map[uint64]bool, error)

	ReplaceAll(ctx context.Context, pages []ImportedPage) (removed []domain.Page, err error)
}

// RevisionEntry is a revision row joined with its author's name.
type RevisionEntry struct {
	ID        uint64    `json:"id"`
	PageID    uint64    `json:"page_id"`
	Summary   string    `json:"summary"`
	UserID    uint64    `json:"user_id"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created"`
}

// ImportedPage is one page reconstructed from a backup document.
type ImportedPage struct {
	Page      *domain.Page
	Revisions []domain.Revision
	Tags      string
}

type RepositoryImpl struct {
	db   *gorm.DB
	tags TagStore
}

func NewRepository(db *gorm.DB, tags TagStore) Repository {
	return &RepositoryImpl{db: db, tags: tags}
}

const newestFirst = "created_at DESC, id DESC"

// FindByName matches page names case-insensitively.
func (r *RepositoryImpl) FindByName(ctx context.Context, name string) (*domain.Page, error) {
	var page domain.Page
	err := r.db.WithContext(ctx).
		Where("LOWER(name) = LOWER(?)", name).
		First(&page).Error
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (r *RepositoryImpl) ListPages(ctx context.Context) ([]domain.Page, error) {
	var pages []domain.Page
	err := r.db.WithContext(ctx).Order("name ASC").Find(&pages).Error
	return pages, err
}

// CreatePage inserts the page, its tags and its first revision in one transaction.
func (r *RepositoryImpl) CreatePage(ctx context.Context, page *domain.Page, revision *domain.Revision, tags string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(page).Error; err != nil {
			if isDuplicateKey(err) {
				return domain.ErrPageAlreadyExists
			}
			return err
		}

		if err := r.tags.Set(ctx, tx, page.ID, tags); err != nil {
			return err
		}

		revision.PageID = page.ID
		return tx.Create(revision).Error
	})
}

// AppendRevision stores the page's display name, replaces its tags and adds a revision.
func (r *RepositoryImpl) AppendRevision(ctx context.Context, page *domain.Page, revision *domain.Revision, tags string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Page{}).
			Where("id = ?", page.ID).
			Update("display_name", page.DisplayName).Error; err != nil {
			return err
		}

		if err := r.tags.Set(ctx, tx, page.ID, tags); err != nil {
			return err
		}

		revision.PageID = page.ID
		return tx.Create(revision).Error
	})
}

// DeletePage removes a page together with its revisions, tags and votes.
func (r *RepositoryImpl) DeletePage(ctx context.Context, pageID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deletePages(tx, []uint64{pageID})
	})
}

func deletePages(tx *gorm.DB, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	for _, model := range []interface{}{&domain.Vote{}, &domain.Tag{}, &domain.Revision{}} {
		if err := tx.Where("page_id IN ?", ids).Delete(model).Error; err != nil {
			return err
		}
	}
	return tx.Where("id IN ?", ids).Delete(&domain.Page{}).Error
}

func (r *RepositoryImpl) UpdateColumn(ctx context.Context, pageID uint64, column string, value interface{}) error {
	return r.db.WithContext(ctx).
		Model(&domain.Page{}).
		Where("id = ?", pageID).
		UpdateColumn(column, value).Error
}

func (r *RepositoryImpl) IncrementViewCount(ctx context.Context, pageID uint64) error {
	return r.UpdateColumn(ctx, pageID, "view_count", gorm.Expr("view_count + 1"))
}

func (r *RepositoryImpl) LatestRevision(ctx context.Context, pageID uint64) (*domain.Revision, error) {
	var rev domain.Revision
	err := r.db.WithContext(ctx).
		Where("page_id = ?", pageID).
		Order(newestFirst).
		First(&rev).Error
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

func (r *RepositoryImpl) FirstRevision(ctx context.Context, pageID uint64) (*domain.Revision, error) {
	var rev domain.Revision
	err := r.db.WithContext(ctx).
		Where("page_id = ?", pageID).
		Order("created_at ASC, id ASC").
		First(&rev).Error
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

func (r *RepositoryImpl) FindRevision(ctx context.Context, pageID, revisionID uint64) (*domain.Revision, error) {
	var rev domain.Revision
	err := r.db.WithContext(ctx).
		Where("page_id = ? AND id = ?", pageID, revisionID).
		First(&rev).Error
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

func (r *RepositoryImpl) AllRevisions(ctx context.Context, pageID uint64) ([]domain.Revision, error) {
	var revs []domain.Revision
	err := r.db.WithContext(ctx).
		Where("page_id = ?", pageID).
		Order(newestFirst).
		Find(&revs).Error
	return revs, err
}

func (r *RepositoryImpl) ListRevisions(ctx context.Context, pageID uint64, page, pageSize int) ([]RevisionEntry, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Revision{}).
		Where("page_id = ?", pageID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []RevisionEntry
	offset := (page - 1) * pageSize
	err := r.db.WithContext(ctx).
		Table("article_revisions AS r").
		Select("r.id, r.page_id, r.summary, r.user_id, r.created_at, COALESCE(u.name, '') AS author").
		Joins("LEFT JOIN users u ON u.id = r.user_id").
		Where("r.page_id = ?", pageID).
		Order("r.created_at DESC, r.id DESC").
		Offset(offset).
		Limit(pageSize).
		Scan(&entries).Error
	return entries, total, err
}

// AddVote relies on the (user_id, page_id) unique index, so two racing votes
// from the same user cannot both land.
func (r *RepositoryImpl) AddVote(ctx context.Context, vote *domain.Vote) error {
	err := r.db.WithContext(ctx).Create(vote).Error
	if err != nil && isDuplicateKey(err) {
		return domain.ErrAlreadyVoted
	}
	return err
}

func (r *RepositoryImpl) VoteCounts(ctx context.Context, pageID uint64) (int64, int64, error) {
	var up, down int64
	db := r.db.WithContext(ctx).Model(&domain.Vote{})
	if err := db.Where("page_id = ? AND is_like = ?", pageID, true).Count(&up).Error; err != nil {
		return 0, 0, err
	}
	db = r.db.WithContext(ctx).Model(&domain.Vote{})
	if err := db.Where("page_id = ? AND is_like = ?", pageID, false).Count(&down).Error; err != nil {
		return 0, 0, err
	}
	return up, down, nil
}

func (r *RepositoryImpl) RendererCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Renderer{}).Count(&count).Error
	return count, err
}

func (r *RepositoryImpl) FindRendererByName(ctx context.Context, name string) (*domain.Renderer, error) {
	var renderer domain.Renderer
	err := r.db.WithContext(ctx).Where("name = ?", strings.ToUpper(name)).First(&renderer).Error
	if err != nil {
		return nil, err
	}
	return &renderer, nil
}

func (r *RepositoryImpl) FindRendererByID(ctx context.Context, id uint64) (*domain.Renderer, error) {
	var renderer domain.Renderer
	err := r.db.WithContext(ctx).First(&renderer, id).Error
	if err != nil {
		return nil, err
	}
	return &renderer, nil
}

func (r *RepositoryImpl) RendererIDs(ctx context.Context) (map[uint64]bool, error) {
	var ids []uint64
	if err := r.db.WithContext(ctx).Model(&domain.Renderer{}).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return toSet(ids), nil
}

func (r *RepositoryImpl) UserName(ctx context.Context, userID uint64) (string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Pluck("name", &names).Error
	if err != nil || len(names) == 0 {
		return "", err
	}
	return names[0], nil
}

func (r *RepositoryImpl) UserIDs(ctx context.Context) (map[uint64]bool, error) {
	var ids []uint64
	if err := r.db.WithContext(ctx).Model(&domain.User{}).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return toSet(ids), nil
}

// ReplaceAll deletes every page and recreates the given ones in one transaction.
// It returns the pages that were removed.
func (r *RepositoryImpl) ReplaceAll(ctx context.Context, pages []ImportedPage) ([]domain.Page, error) {
	var removed []domain.Page

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Find(&removed).Error; err != nil {
			return err
		}
		ids := make([]uint64, 0, len(removed))
		for _, p := range removed {
			ids = append(ids, p.ID)
		}
		if err := deletePages(tx, ids); err != nil {
			return err
		}

		for _, imported := range pages {
			imported.Page.ID = 0
			if err := tx.Create(imported.Page).Error; err != nil {
				return err
			}
			if err := r.tags.Set(ctx, tx, imported.Page.ID, imported.Tags); err != nil {
				return err
			}
			for i := range imported.Revisions {
				imported.Revisions[i].ID = 0
				imported.Revisions[i].PageID = imported.Page.ID
			}
			if len(imported.Revisions) > 0 {
				if err := tx.Create(&imported.Revisions).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func toSet(ids []uint64) map[uint64]bool {
	set := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// isDuplicateKey recognises unique violations whether or not the dialect translated them.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
