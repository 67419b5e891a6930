package article

import (
	"article-service/internal/domain"
	"article-service/internal/errors"
	"article-service/internal/middleware"
	"article-service/internal/utils"
	defError "errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const maxBackupSize = 64 << 20

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Read shows the latest revision, or the one named by :revision.
// Private pages look missing to callers without set_private.
func (h *Handler) Read(c *gin.Context) {
	name := c.Param("page_id")

	var revisionID uint64
	if raw := c.Param("revision"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.Error(errors.BadRequest("Invalid revision id", err))
			return
		}
		revisionID = id
	}

	page, err := h.service.ShowPage(c.Request.Context(), name)
	if err != nil {
		c.Error(err)
		return
	}
	if page.Private && !middleware.Can(middleware.CurrentUser(c), middleware.PermSetPrivate) {
		c.Error(errors.NotFound("Page not found", domain.ErrPageNotFound))
		return
	}

	view, err := h.service.ReadPage(c.Request.Context(), name, revisionID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// List answers with an empty list when there are no pages.
func (h *Handler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		if defError.Is(err, domain.ErrPageNotFound) {
			c.JSON(http.StatusOK, gin.H{"data": []PageListItem{}})
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (h *Handler) Create(c *gin.Context) {
	var input CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}
	input.Name = c.Param("page_id")

	page, err := h.service.Create(c.Request.Context(), middleware.CurrentUser(c), input)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, page)
}

// Update stores a new revision. Sending empty content deletes the page.
func (h *Handler) Update(c *gin.Context) {
	name := c.Param("page_id")
	if !h.authorizeOwner(c, name) {
		return
	}

	var input UpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	if err := h.service.Update(c.Request.Context(), name, middleware.CurrentUser(c), input); err != nil {
		c.Error(err)
		return
	}

	if input.Content == "" {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name})
}

func (h *Handler) Delete(c *gin.Context) {
	name := c.Param("page_id")
	if !h.authorizeOwner(c, name) {
		return
	}

	if err := h.service.Delete(c.Request.Context(), name); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Revert(c *gin.Context) {
	name := c.Param("page_id")
	revisionID, err := strconv.ParseUint(c.Param("revision"), 10, 64)
	if err != nil {
		c.Error(errors.BadRequest("Invalid revision id", err))
		return
	}
	if !h.authorizeOwner(c, name) {
		return
	}

	if err := h.service.Revert(c.Request.Context(), name, revisionID, middleware.CurrentUser(c)); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"name": name})
}

func (h *Handler) ListRevisions(c *gin.Context) {
	page, pageSize := utils.GetPaginationParams(c)

	history, err := h.service.ListRevisions(c.Request.Context(), c.Param("page_id"), page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, history)
}

func (h *Handler) SwitchRenderer(c *gin.Context) {
	page, err := h.service.SwitchRenderer(c.Request.Context(), c.Param("page_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *Handler) SetPrivate(c *gin.Context) {
	page, err := h.service.SetPrivate(c.Request.Context(), c.Param("page_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *Handler) HideDisplayName(c *gin.Context) {
	page, err := h.service.HideDisplayName(c.Request.Context(), c.Param("page_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, page)
}

type PatchRequest struct {
	Action string `json:"action" binding:"required,oneof=set_private hide_display_name switch_renderer"`
}

// Patch applies one of the page toggles by name; the caller must hold the matching permission.
func (h *Handler) Patch(c *gin.Context) {
	var input PatchRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	perm := middleware.PermSetPrivate
	if input.Action == "switch_renderer" {
		perm = middleware.PermSwitchRenderer
	}
	user := middleware.CurrentUser(c)
	if user == nil {
		c.Error(errors.Unauthorized("Login required", nil))
		return
	}
	if !middleware.Can(user, perm) {
		c.Error(errors.Forbidden("Permission denied: "+perm, nil))
		return
	}

	switch input.Action {
	case "set_private":
		h.SetPrivate(c)
	case "hide_display_name":
		h.HideDisplayName(c)
	case "switch_renderer":
		h.SwitchRenderer(c)
	}
}

func (h *Handler) Vote(c *gin.Context) {
	like := strings.EqualFold(c.Param("like"), "true")

	err := h.service.AddVote(c.Request.Context(), c.Param("vote_id"), middleware.CurrentUser(c), like)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"like": like})
}

func (h *Handler) Backup(c *gin.Context) {
	data, err := h.service.Export(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	filename := "articles-" + time.Now().UTC().Format("20060102-150405") + ".json"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/json", data)
}

// Restore accepts the backup either as a multipart "file" field or as the raw body.
func (h *Handler) Restore(c *gin.Context) {
	data, err := readBackup(c)
	if err != nil {
		c.Error(errors.BadRequest("Backup could not be read", err))
		return
	}

	if err := h.service.Import(c.Request.Context(), data, middleware.CurrentUser(c)); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func readBackup(c *gin.Context) ([]byte, error) {
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, maxBackupSize))
	}
	return io.ReadAll(io.LimitReader(c.Request.Body, maxBackupSize))
}

// authorizeOwner lets moderators through, and otherwise only the page's first author.
func (h *Handler) authorizeOwner(c *gin.Context, name string) bool {
	user := middleware.CurrentUser(c)
	if middleware.Can(user, middleware.PermArticleMod) {
		return true
	}
	if user == nil {
		c.Error(errors.Unauthorized("Login required", nil))
		return false
	}

	owner, err := h.service.PageOwner(c.Request.Context(), name)
	if err != nil {
		c.Error(err)
		return false
	}
	if owner != user.ID {
		c.Error(errors.Forbidden("Only the page owner can change this page", nil))
		return false
	}
	return true
}

// RegisterRoutes mounts the article routes behind their permissions.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	perm := middleware.RequirePermission

	article := r.Group("/article")
	article.GET("/item/:page_id", perm(middleware.PermArticleView), h.Read)
	article.GET("/item/:page_id/:revision", perm(middleware.PermArticleView), h.Read)
	article.GET("/list", perm(middleware.PermArticleList), h.List)
	article.POST("/create/:page_id", perm(middleware.PermArticleCreate), h.Create)
	article.POST("/update/:page_id", perm(middleware.PermArticleUpdate), h.Update)
	article.POST("/delete/:page_id", perm(middleware.PermArticleDelete), h.Delete)
	article.POST("/revert/:page_id/:revision", perm(middleware.PermArticleRevert), h.Revert)
	article.GET("/list_revisions/:page_id", perm(middleware.PermArticleListRevisions), h.ListRevisions)
	article.POST("/switch_renderer/:page_id", perm(middleware.PermSwitchRenderer), h.SwitchRenderer)
	article.POST("/set_private/:page_id", perm(middleware.PermSetPrivate), h.SetPrivate)
	article.POST("/hide_display_name/:page_id", perm(middleware.PermSetPrivate), h.HideDisplayName)

	r.POST("/vote/article/:vote_id/:like", perm(middleware.PermVote), h.Vote)

	admin := r.Group("/userarea_admin", perm(middleware.PermBackup))
	admin.GET("/backup_articles", h.Backup)
	admin.POST("/restore_articles", h.Restore)

	api := r.Group("/api/article")
	api.GET("/list", perm(middleware.PermArticleList), h.List)
	api.GET("/item/:page_id", perm(middleware.PermArticleView), h.Read)
	api.PUT("/item/:page_id", perm(middleware.PermArticleUpdate), h.Update)
	api.PATCH("/item/:page_id", h.Patch)
	api.DELETE("/item/:page_id", perm(middleware.PermArticleDelete), h.Delete)
}
