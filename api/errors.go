package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"arbigate/logger"
)

// SafeError logs the internal error and returns a generic message to
// the client, never the error text itself.
func SafeError(c *gin.Context, statusCode int, publicMsg string, internalErr error) {
	if internalErr != nil {
		logger.Errorf("[API Error] %s: %v", publicMsg, internalErr)
	}
	c.JSON(statusCode, gin.H{"error": publicMsg})
}

// SafeInternalError logs an internal error and returns a 500 with a
// generic message built from the operation name.
func SafeInternalError(c *gin.Context, operation string, err error) {
	logger.Errorf("[Internal Error] %s: %v", operation, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": operation + " failed"})
}

// SafeBadRequest returns a 400 with a caller-supplied validation
// message; these are safe to show verbatim since they describe the
// request, not the server's internals.
func SafeBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// SafeServiceUnavailable returns a 503 carrying only msg. The
// orderbook and balance not-ready path uses Server.serviceUnavailable
// instead, which also echoes the startup status and details.
func SafeServiceUnavailable(c *gin.Context, msg string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": msg})
}
