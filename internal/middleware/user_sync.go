package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"cuadra/internal/logger"
	"cuadra/internal/models"
)

// UserEnsurer creates or refreshes the directory row of an identity.
type UserEnsurer interface {
	EnsureUser(ctx context.Context, id, email, displayName string) (*models.User, error)
}

// UserSync mirrors the token claims into the user directory so invitations
// can resolve the caller by email. It must run after AuthMiddleware.
func UserSync(users UserEnsurer) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, err := users.EnsureUser(c.Request.Context(),
			c.GetString(UserIDKey), c.GetString(EmailKey), c.GetString(DisplayNameKey))
		if err != nil {
			logger.Get().Warnw("user sync failed",
				"user_id", c.GetString(UserIDKey),
				"error", err.Error(),
				"request_id", RequestID(c),
			)
			RenderError(c, err)
			return
		}
		c.Next()
	}
}
