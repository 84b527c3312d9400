package handlers

import "github.com/gin-gonic/gin"

// getManagerID extracts the authenticated manager ID from gin context.
func getManagerID(c *gin.Context) uint64 {
	val, exists := c.Get("managerID")
	if !exists {
		return 0
	}
	id, _ := val.(uint64)
	return id
}
