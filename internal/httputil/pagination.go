package httputil

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultPageSize is the number of rows returned when no limit is given.
	DefaultPageSize = 50
	// MaxPageSize caps the limit query parameter.
	MaxPageSize = 100
)

// ParsePagination safely parses and validates offset and limit query parameters.
// It uses default values of 0 for offset and DefaultPageSize for limit.
// The limit cannot exceed MaxPageSize.
func ParsePagination(c *gin.Context) (offset, limit int, err error) {
	offsetStr := c.DefaultQuery("offset", "0")
	offset, err = strconv.Atoi(offsetStr)
	if err != nil || offset < 0 {
		return 0, 0, fmt.Errorf("invalid offset parameter: must be a non-negative integer")
	}

	limitStr := c.DefaultQuery("limit", strconv.Itoa(DefaultPageSize))
	limit, err = strconv.Atoi(limitStr)
	if err != nil || limit < 1 || limit > MaxPageSize {
		return 0, 0, fmt.Errorf("invalid limit parameter: must be between 1 and %d", MaxPageSize)
	}

	return offset, limit, nil
}
