package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskvip/walletcore/internal/http/api/admin/permissions"
)

// PermissionHandler exposes permission definitions for managers.
type PermissionHandler struct{}

// NewPermissionHandler constructs a PermissionHandler.
func NewPermissionHandler() *PermissionHandler {
	return &PermissionHandler{}
}

// List returns all route definitions and the capability tokens they use.
func (h *PermissionHandler) List(c *gin.Context) {
	defs := permissions.Definitions()
	out := make([]gin.H, 0, len(defs))
	for _, def := range defs {
		out = append(out, gin.H{
			"key":        def.Key,
			"method":     def.Method,
			"path":       def.Path,
			"label":      def.Label,
			"module":     def.Module,
			"capability": def.Capability,
		})
	}
	c.JSON(http.StatusOK, gin.H{"permissions": out, "capabilities": permissions.Capabilities()})
}
