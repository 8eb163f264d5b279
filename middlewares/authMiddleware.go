package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/closing_backend/config"
	"github.com/mmdatafocus/closing_backend/utils"
)

type authString string

const bearerPrefix = "Bearer "

// AuthMiddleware parses the bearer token when present. Requests without one pass through
// unauthenticated; RequireSession decides whether that is allowed.
// With redis connected the token's session must still exist.
func AuthMiddleware(redis *config.Redis) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if auth == "" {
			c.Next()
			return
		}
		if !strings.HasPrefix(auth, bearerPrefix) {
			abortUnauthorized(c)
			return
		}

		validate, err := utils.JwtValidate(strings.TrimSpace(auth[len(bearerPrefix):]))
		if err != nil || !validate.Valid {
			abortUnauthorized(c)
			return
		}
		customClaim, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok || customClaim.Subject == "" {
			abortUnauthorized(c)
			return
		}

		ctx := c.Request.Context()
		if redis != nil {
			username, exists, err := redis.GetValue(ctx, "Token:"+customClaim.Id)
			if err != nil || !exists || username != customClaim.Subject {
				abortUnauthorized(c)
				return
			}
		}

		ctx = context.WithValue(ctx, authString("auth"), customClaim)
		ctx = utils.SetTokenInContext(ctx, customClaim.Id)
		ctx = utils.SetUsernameInContext(ctx, customClaim.Subject)
		ctx = utils.SetTenantCodeInContext(ctx, customClaim.TenantCode)
		ctx = utils.SetIsAdminInContext(ctx, customClaim.TenantCode == "")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func CtxValue(ctx context.Context) *utils.JwtCustomClaim {
	raw, _ := ctx.Value(authString("auth")).(*utils.JwtCustomClaim)
	return raw
}

func abortUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	c.Abort()
}
