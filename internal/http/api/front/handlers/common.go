package handlers

import "github.com/gin-gonic/gin"

// getUserID returns the caller set by the user authenticator, or 0.
func getUserID(c *gin.Context) uint64 {
	if val, ok := c.Get("userID"); ok {
		if id, okID := val.(uint64); okID {
			return id
		}
	}
	return 0
}
