package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emineral/emineral-backend/internal/handlers"
	"github.com/emineral/emineral-backend/internal/requestdata"
	"github.com/emineral/emineral-backend/internal/services"
)

// RequireAuth verifies the Bearer token and stashes the caller's identity in
// the request context for the handlers below it.
func RequireAuth(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			handlers.RespondErrorMessage(c, http.StatusUnauthorized, "missing bearer token")
			c.Abort()
			return
		}

		userID, role, err := authService.VerifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			handlers.RespondErrorMessage(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		ctx := requestdata.WithRequestData(c.Request.Context(), &requestdata.RequestData{
			UserID: userID,
			Role:   role,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
