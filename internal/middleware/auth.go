package middleware

import (
	"article-service/auth"
	"article-service/internal/domain"
	"article-service/internal/errors"
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

const userKey = "user"

type UserProvider interface {
	GetUserByID(ctx context.Context, id uint64) (*domain.User, error)
}

type Auth struct {
	UserService UserProvider
}

// Authenticate resolves the caller from a bearer token when one is sent.
// Requests without a token continue anonymously; a bad token is rejected.
func (m *Auth) Authenticate() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := bearerToken(ctx)
		if token == "" {
			ctx.Next()
			return
		}
		if !m.resolve(ctx, token) {
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// AuthMiddleWare requires a valid access token.
func (m *Auth) AuthMiddleWare() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := bearerToken(ctx)
		if token == "" {
			ctx.Error(errors.Unauthorized("Authorization is not found!", nil))
			ctx.Abort()
			return
		}
		if !m.resolve(ctx, token) {
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func (m *Auth) resolve(ctx *gin.Context, token string) bool {
	claims, err := auth.VerifyAccessToken(token)
	if err != nil {
		ctx.Error(errors.Unauthorized("Invalid token!", err))
		return false
	}

	user, err := m.UserService.GetUserByID(ctx.Request.Context(), claims.UserID)
	if err != nil {
		ctx.Error(errors.Unauthorized("Invalid User ID!", err))
		return false
	}
	if !user.IsActive {
		ctx.Error(errors.Unauthorized("User is not active", nil))
		return false
	}
	if user.TokenVersion != claims.TokenVersion {
		ctx.Error(errors.Unauthorized("Invalid token version!", nil))
		return false
	}

	ctx.Set(userKey, user)
	ctx.Set("user_id", user.ID)
	ctx.Set("jwt_token", token)
	return true
}

func bearerToken(ctx *gin.Context) string {
	if header := ctx.GetHeader("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ctx.Query("token")
}

// CurrentUser returns the authenticated caller, or nil for anonymous requests.
func CurrentUser(ctx *gin.Context) *domain.User {
	v, ok := ctx.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*domain.User)
	return user
}
