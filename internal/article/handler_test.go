package article

import (
	"article-service/auth"
	"article-service/internal/domain"
	"article-service/internal/errors"
	"article-service/internal/middleware"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, author *domain.User, input CreateInput) (*domain.Page, error) {
	args := m.Called(author, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Page), args.Error(1)
}

func (m *MockService) Update(ctx context.Context, name string, author *domain.User, input UpdateInput) error {
	return m.Called(name, author, input).Error(0)
}

func (m *MockService) Revert(ctx context.Context, name string, revisionID uint64, author *domain.User) error {
	return m.Called(name, revisionID, author).Error(0)
}

func (m *MockService) Delete(ctx context.Context, name string) error {
	return m.Called(name).Error(0)
}

func (m *MockService) pageResult(args mock.Arguments) (*domain.Page, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Page), args.Error(1)
}

func (m *MockService) SetPrivate(ctx context.Context, name string) (*domain.Page, error) {
	return m.pageResult(m.Called(name))
}

func (m *MockService) HideDisplayName(ctx context.Context, name string) (*domain.Page, error) {
	return m.pageResult(m.Called(name))
}

func (m *MockService) SwitchRenderer(ctx context.Context, name string) (*domain.Page, error) {
	return m.pageResult(m.Called(name))
}

func (m *MockService) AddVote(ctx context.Context, name string, voter *domain.User, like bool) error {
	return m.Called(name, voter, like).Error(0)
}

func (m *MockService) ShowPage(ctx context.Context, name string) (*domain.Page, error) {
	return m.pageResult(m.Called(name))
}

func (m *MockService) ShowRevision(ctx context.Context, page *domain.Page, revisionID uint64, mustExist bool) (*domain.Revision, error) {
	args := m.Called(page, revisionID, mustExist)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Revision), args.Error(1)
}

func (m *MockService) ReadPage(ctx context.Context, name string, revisionID uint64) (*PageView, error) {
	args := m.Called(name, revisionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PageView), args.Error(1)
}

func (m *MockService) List(ctx context.Context) ([]PageListItem, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]PageListItem), args.Error(1)
}

func (m *MockService) ListRevisions(ctx context.Context, name string, page, pageSize int) (*RevisionHistory, error) {
	args := m.Called(name, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RevisionHistory), args.Error(1)
}

func (m *MockService) VoteCounts(ctx context.Context, pageID uint64) (int64, int64, error) {
	args := m.Called(pageID)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *MockService) PageOwner(ctx context.Context, name string) (uint64, error) {
	args := m.Called(name)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockService) Export(ctx context.Context) ([]byte, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockService) Import(ctx context.Context, data []byte, importer *domain.User) error {
	return m.Called(data, importer).Error(0)
}

type stubUsers map[uint64]*domain.User

func (s stubUsers) GetUserByID(_ context.Context, id uint64) (*domain.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %d not found", id)
}

var (
	member = &domain.User{ID: 1, Name: "member", Role: domain.RoleMember, TokenVersion: 1, IsActive: true}
	editor = &domain.User{ID: 2, Name: "editor", Role: domain.RoleArticle, TokenVersion: 1, IsActive: true}
	admin  = &domain.User{ID: 3, Name: "admin", Role: domain.RoleAdmin, TokenVersion: 1, IsActive: true}
)

func setupRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth.SetSecret("handler-secret")

	m := &middleware.Auth{UserService: stubUsers{1: member, 2: editor, 3: admin}}
	r := gin.New()
	r.Use(middleware.ErrorHandler(), m.Authenticate())
	NewHandler(svc).RegisterRoutes(r)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, as *domain.User, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		token, err := auth.GenerateAccessToken(as.ID, as.TokenVersion)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRead_Public(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	page := &domain.Page{ID: 1, Name: "Home", DisplayName: "Home"}
	svc.On("ShowPage", "Home").Return(page, nil)
	svc.On("ReadPage", "Home", uint64(0)).Return(&PageView{
		Page:     page,
		Revision: &domain.Revision{ID: 5, Content: "hi"},
		Renderer: "HTML",
		HTML:     "hi",
		Tags:     []string{"go"},
	}, nil)

	w := do(t, r, http.MethodGet, "/article/item/Home", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var view PageView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "hi", view.HTML)
	assert.Equal(t, []string{"go"}, view.Tags)
	svc.AssertExpectations(t)
}

func TestRead_ByRevision(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	page := &domain.Page{ID: 1, Name: "Home"}
	svc.On("ShowPage", "Home").Return(page, nil)
	svc.On("ReadPage", "Home", uint64(3)).Return(&PageView{Page: page, Revision: &domain.Revision{ID: 3}}, nil)

	w := do(t, r, http.MethodGet, "/article/item/Home/3", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/article/item/Home/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRead_PrivateHiddenFromVisitors(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	page := &domain.Page{ID: 1, Name: "Secret", Private: true}
	svc.On("ShowPage", "Secret").Return(page, nil)
	svc.On("ReadPage", "Secret", uint64(0)).Return(&PageView{Page: page}, nil)

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/article/item/Secret", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/article/item/Secret", editor, nil).Code)
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/article/item/Secret", admin, nil).Code)
	svc.AssertNumberOfCalls(t, "ReadPage", 1)
}

func TestRead_NotFound(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	svc.On("ShowPage", "Ghost").Return(nil, errors.NotFound("Page not found", domain.ErrPageNotFound))

	w := do(t, r, http.MethodGet, "/article/item/Ghost", nil, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Page not found")
}

func TestList_EmptyStoreIsEmptyList(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	svc.On("List").Return(nil, errors.NotFound("No pages", domain.ErrPageNotFound))

	w := do(t, r, http.MethodGet, "/article/list", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data": []}`, w.Body.String())
}

func TestListHandler(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	svc.On("List").Return([]PageListItem{{Name: "a", DisplayName: "A"}}, nil)

	w := do(t, r, http.MethodGet, "/api/article/list", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data": [{"name": "a", "display_name": "A"}]}`, w.Body.String())
}

func TestCreate_Permissions(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	body := CreateInput{Content: "hello", Summary: "first"}
	svc.On("Create", editor, mock.MatchedBy(func(in CreateInput) bool {
		return in.Name == "Home" && in.Content == "hello"
	})).Return(&domain.Page{ID: 9, Name: "Home"}, nil)

	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodPost, "/article/create/Home", nil, body).Code)
	assert.Equal(t, http.StatusForbidden, do(t, r, http.MethodPost, "/article/create/Home", member, body).Code)

	w := do(t, r, http.MethodPost, "/article/create/Home", editor, body)
	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestCreate_Validation(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	w := do(t, r, http.MethodPost, "/article/create/Home", editor, CreateInput{Summary: "no content"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Content")
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreate_Conflict(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	svc.On("Create", editor, mock.Anything).Return(nil, errors.Conflict("Page already exists", domain.ErrPageAlreadyExists))

	w := do(t, r, http.MethodPost, "/article/create/Home", editor, CreateInput{Content: "x"})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdate_OwnerCheck(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	input := UpdateInput{Content: "v2"}
	svc.On("PageOwner", "Home").Return(uint64(99), nil)
	svc.On("Update", "Home", mock.Anything, input).Return(nil)

	w := do(t, r, http.MethodPost, "/article/update/Home", editor, input)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPost, "/article/update/Home", admin, input)
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertNumberOfCalls(t, "PageOwner", 1)
	svc.AssertNumberOfCalls(t, "Update", 1)
}

func TestUpdate_ByOwner(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	input := UpdateInput{Content: "v2", Summary: "edit", Tags: "go"}
	svc.On("PageOwner", "Home").Return(editor.ID, nil)
	svc.On("Update", "Home", editor, input).Return(nil)

	w := do(t, r, http.MethodPut, "/api/article/item/Home", editor, input)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestUpdate_EmptyContentReportsDeletion(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	svc.On("PageOwner", "Home").Return(editor.ID, nil)
	svc.On("Update", "Home", editor, UpdateInput{}).Return(nil)

	w := do(t, r, http.MethodPost, "/article/update/Home", editor, UpdateInput{})

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDelete(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	svc.On("PageOwner", "Home").Return(editor.ID, nil)
	svc.On("Delete", "Home").Return(nil)

	w := do(t, r, http.MethodDelete, "/api/article/item/Home", editor, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodPost, "/article/delete/Home", member, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	svc.AssertNumberOfCalls(t, "Delete", 1)
}

func TestRevert(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	svc.On("PageOwner", "Home").Return(editor.ID, nil)
	svc.On("Revert", "Home", uint64(4), editor).Return(nil)

	w := do(t, r, http.MethodPost, "/article/revert/Home/4", editor, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, "/article/revert/Home/four", editor, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNumberOfCalls(t, "Revert", 1)
}

func TestListRevisions_RequiresLogin(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	svc.On("ListRevisions", "Home", 2, 5).Return(&RevisionHistory{
		Data: []RevisionEntry{{ID: 1, Summary: "initial", Author: "editor"}},
		Meta: HistoryMeta{Page: 2, PageSize: 5, Total: 6, TotalPages: 2},
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodGet, "/article/list_revisions/Home?page=2&per_page=5", nil, nil).Code)

	w := do(t, r, http.MethodGet, "/article/list_revisions/Home?page=2&per_page=5", member, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"author":"editor"`)
}

func TestToggles_AdminOnly(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	svc.On("SetPrivate", "Home").Return(&domain.Page{Name: "Home", Private: true}, nil)
	svc.On("HideDisplayName", "Home").Return(&domain.Page{Name: "Home", HideDisplayName: true}, nil)
	svc.On("SwitchRenderer", "Home").Return(&domain.Page{Name: "Home", RendererID: 2}, nil)

	for _, path := range []string{"/article/set_private/Home", "/article/hide_display_name/Home", "/article/switch_renderer/Home"} {
		assert.Equal(t, http.StatusForbidden, do(t, r, http.MethodPost, path, editor, nil).Code, path)
		assert.Equal(t, http.StatusOK, do(t, r, http.MethodPost, path, admin, nil).Code, path)
	}
	svc.AssertExpectations(t)
}

func TestPatch(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	svc.On("SwitchRenderer", "Home").Return(&domain.Page{Name: "Home", RendererID: 3}, nil)

	w := do(t, r, http.MethodPatch, "/api/article/item/Home", admin, PatchRequest{Action: "switch_renderer"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"renderer_id":3`)

	w = do(t, r, http.MethodPatch, "/api/article/item/Home", editor, PatchRequest{Action: "set_private"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPatch, "/api/article/item/Home", nil, PatchRequest{Action: "set_private"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, r, http.MethodPatch, "/api/article/item/Home", admin, PatchRequest{Action: "rename"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestVote(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	svc.On("AddVote", "Home", member, true).Return(nil).Once()
	svc.On("AddVote", "Home", member, false).Return(errors.Conflict("You already voted for this page", domain.ErrAlreadyVoted)).Once()

	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodPost, "/vote/article/Home/true", nil, nil).Code)
	assert.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/vote/article/Home/True", member, nil).Code)
	assert.Equal(t, http.StatusConflict, do(t, r, http.MethodPost, "/vote/article/Home/false", member, nil).Code)
	svc.AssertExpectations(t)
}

func TestBackup(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	svc.On("Export").Return([]byte(`[]`), nil)

	assert.Equal(t, http.StatusForbidden, do(t, r, http.MethodGet, "/userarea_admin/backup_articles", editor, nil).Code)

	w := do(t, r, http.MethodGet, "/userarea_admin/backup_articles", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, "[]", w.Body.String())
}

func TestRestore(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	doc := []byte(`[{"name": "Home"}]`)
	svc.On("Import", doc, admin).Return(nil)

	w := do(t, r, http.MethodPost, "/userarea_admin/restore_articles", admin, doc)

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}
