package http

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskvip/walletcore/internal/apperr"
)

// ParseIDParam reads a positive integer path parameter. On failure it writes
// a validation error and returns false.
func ParseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id == 0 {
		WriteError(c, apperr.Validation(name, "invalid "+name))
		return 0, false
	}
	return id, true
}

// ParseIDQuery reads an optional positive integer query filter. An absent
// value yields 0. A malformed one writes a validation error and returns false.
func ParseIDQuery(c *gin.Context, name string) (uint64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		WriteError(c, apperr.Validation(name, "invalid "+name))
		return 0, false
	}
	return id, true
}

// Pagination reads limit/offset query parameters with defaults.
func Pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
