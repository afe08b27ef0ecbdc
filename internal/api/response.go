package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Error codes returned in the failure envelope. HTTP status carries transport
// semantics; the code is the stable contract for clients.
const (
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeLinkUsed        = "LINK_USED"
	CodeRateLimited     = "RATE_LIMITED"
)

// RequestID returns the identifier assigned by RequestIDMiddleware.
func RequestID(c *gin.Context) string {
	rid := c.GetString("requestID")
	if rid == "" {
		rid = uuid.New().String()
	}
	return rid
}

// Success writes the uniform success envelope. data may be nil; extras are
// merged top-level next to success/requestId (e.g. verifyUrl, emailSent).
func Success(c *gin.Context, status int, data any, extras gin.H) {
	payload := gin.H{
		"success":   true,
		"requestId": RequestID(c),
	}
	if data != nil {
		payload["data"] = data
	}
	for k, v := range extras {
		payload[k] = v
	}
	c.JSON(status, payload)
}

// Failure writes the uniform failure envelope and aborts the handler chain.
func Failure(c *gin.Context, status int, code, message string, details gin.H) {
	payload := gin.H{
		"success":   false,
		"error":     message,
		"code":      code,
		"requestId": RequestID(c),
	}
	if details != nil {
		payload["details"] = details
	}
	c.AbortWithStatusJSON(status, payload)
}
