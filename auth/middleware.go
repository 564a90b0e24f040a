package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"arcade/domain"
)

// RequireActor extracts the actor id from the session token (Authorization
// bearer header, falling back to the "token" cookie for websocket clients)
// and sets it as "id" on the context.
func RequireActor(manager *JWTManager) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := bearerToken(ctx)
		if token == "" {
			var err error
			if token, err = ctx.Cookie("token"); err != nil {
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing-token"})
				return
			}
		}

		id, err := manager.Verify(token)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrExpiredToken):
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "expired-token"})
			default:
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid-token"})
			}
			return
		}

		ctx.Set("id", id)
		ctx.Next()
	}
}

func bearerToken(ctx *gin.Context) string {
	header := ctx.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}
