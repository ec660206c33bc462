package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	apperrors "github.com/charlesng35/bookshelf/pkg/errors"
	"github.com/charlesng35/bookshelf/pkg/response"
)

// requestContext returns the request context, or Background for bare test contexts.
func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

// bookIDParam extracts the :id path segment, answering 400 when it is not a UUID.
func bookIDParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !isValidResourceID(id) {
		response.Error(c, apperrors.Validation("id", "Invalid book ID format"))
		return "", false
	}
	return id, true
}
