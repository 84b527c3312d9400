package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskvip/walletcore/internal/http/api/admin/permissions"
	"github.com/taskvip/walletcore/internal/models"
	"gorm.io/gorm"
)

// managerPermissionMiddleware enforces the capability a route needs.
func managerPermissionMiddleware(db *gorm.DB) gin.HandlerFunc {
	permissionMap := permissions.DefinitionMap()

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}

		def, ok := permissionMap[permissions.Key(c.Request.Method, path)]
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}

		managerPermissions, okPermissions := readManagerPermissionsFromContext(c)
		isSuperAdmin, okSuper := readManagerIsSuperAdminFromContext(c)
		if !okPermissions || !okSuper {
			managerIDValue, exists := c.Get("managerID")
			if !exists {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "manager not found"})
				return
			}
			managerID, okID := managerIDValue.(uint64)
			if !okID {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "manager not found"})
				return
			}

			var manager models.Manager
			if errFind := db.WithContext(c.Request.Context()).Select("id", "permissions", "is_super_admin").First(&manager, managerID).Error; errFind != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "manager not found"})
				return
			}
			managerPermissions = permissions.ParsePermissions(manager.Permissions)
			isSuperAdmin = manager.IsSuperAdmin
			c.Set("managerPermissions", managerPermissions)
			c.Set("managerIsSuperAdmin", isSuperAdmin)
		}

		if isSuperAdmin {
			c.Next()
			return
		}

		if !permissions.HasPermission(managerPermissions, def.Capability) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "permission denied",
				"kind":  "authorization",
				"code":  "permission_denied",
			})
			return
		}

		c.Next()
	}
}

func readManagerPermissionsFromContext(c *gin.Context) ([]string, bool) {
	value, ok := c.Get("managerPermissions")
	if !ok {
		return nil, false
	}
	list, ok := value.([]string)
	return list, ok
}

func readManagerIsSuperAdminFromContext(c *gin.Context) (bool, bool) {
	value, ok := c.Get("managerIsSuperAdmin")
	if !ok {
		return false, false
	}
	flag, ok := value.(bool)
	return flag, ok
}
