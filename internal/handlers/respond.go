package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"visaconnect/internal/repositories"
)

const requestIDContextKey = "request_id"

// respondOK writes the success envelope every endpoint shares.
func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// respondError writes the error envelope.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// respondNotFoundOrError maps a repository miss to 404 and anything else to
// 500.
func respondNotFoundOrError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	if errors.Is(err, repositories.ErrConversationNotFound) ||
		errors.Is(err, repositories.ErrUserNotFound) ||
		errors.Is(err, repositories.ErrBusinessNotFound) {
		status = http.StatusNotFound
	}
	respondError(c, status, message)
}

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}
