package middlewares

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-booking/utils"
)

// RequireRoles lets the request through only for the listed roles. Admin is
// always allowed.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get("role")
		if !exists {
			utils.RespondError(c, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
			c.Abort()
			return
		}

		role, _ := userRole.(string)
		if role == utils.RoleAdmin {
			c.Next()
			return
		}
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}

		utils.RespondError(c, http.StatusForbidden, fmt.Errorf("%s access required", strings.Join(roles, " or ")))
		c.Abort()
	}
}

func StaffOnly() gin.HandlerFunc {
	return RequireRoles(utils.RoleStaff)
}

func AdminOnly() gin.HandlerFunc {
	return RequireRoles(utils.RoleAdmin)
}
