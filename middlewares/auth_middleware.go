package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-booking/utils"
)

// AuthMiddleware verifies the identity token and exposes user_id and role
// to the handlers. Websocket clients may pass the token as a query param.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("Authorization header missing"))
			c.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString, secret)
		if err != nil {
			utils.RespondError(c, http.StatusUnauthorized, err)
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if !strings.HasPrefix(header, "Bearer ") {
			return ""
		}
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return c.Query("token")
}
