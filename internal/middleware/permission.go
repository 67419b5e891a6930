package middleware

import (
	"article-service/internal/domain"
	"article-service/internal/errors"

	"github.com/gin-gonic/gin"
)

const (
	PermArticleView          = "article_view"
	PermArticleList          = "article_list"
	PermArticleCreate        = "article_create"
	PermArticleUpdate        = "article_update"
	PermArticleDelete        = "article_delete"
	PermArticleRevert        = "article_revert"
	PermArticleListRevisions = "article_list_revisions"
	PermArticleMod           = "article_mod"
	PermSwitchRenderer       = "switch_renderer"
	PermSetPrivate           = "set_private"
	PermVote                 = "vote"
	PermBackup               = "backup"
)

var (
	everyone      = []string{PermArticleView, PermArticleList}
	authenticated = []string{PermArticleListRevisions, PermVote}

	rolePermissions = map[string][]string{
		domain.RoleArticle: {
			PermArticleView, PermArticleList, PermArticleCreate,
			PermArticleUpdate, PermArticleDelete, PermArticleRevert,
		},
	}
)

// Can reports whether user holds perm. A nil user is anonymous. Admins hold every permission.
func Can(user *domain.User, perm string) bool {
	if contains(everyone, perm) {
		return true
	}
	if user == nil {
		return false
	}
	if user.Role == domain.RoleAdmin {
		return true
	}
	if contains(authenticated, perm) {
		return true
	}
	return contains(rolePermissions[user.Role], perm)
}

// RequirePermission rejects callers lacking perm: 401 when anonymous, 403 otherwise.
func RequirePermission(perm string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user := CurrentUser(ctx)
		if Can(user, perm) {
			ctx.Next()
			return
		}
		if user == nil {
			ctx.Error(errors.Unauthorized("Login required", nil))
		} else {
			ctx.Error(errors.Forbidden("Permission denied: "+perm, nil))
		}
		ctx.Abort()
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
