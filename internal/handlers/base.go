package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"researchblog/internal/services"
)

var errorStatus = []struct {
	kind   error
	status int
}{
	{services.ErrValidation, http.StatusBadRequest},
	{services.ErrDuplicateIdentity, http.StatusBadRequest},
	{services.ErrAccountNotFound, http.StatusBadRequest},
	{services.ErrNotVerified, http.StatusBadRequest},
	{services.ErrInvalidCredentials, http.StatusBadRequest},
	{services.ErrInvalidToken, http.StatusBadRequest},
	{services.ErrForbidden, http.StatusForbidden},
	{services.ErrPostNotFound, http.StatusNotFound},
	{services.ErrServerMisconfigured, http.StatusInternalServerError},
}

// respondError writes err as {message}. Errors outside the known kinds are
// 500 with fallback as the message and the raw error for diagnostics. Only
// 5xx errors are attached to the context for the request logger.
func respondError(c *gin.Context, err error, fallback string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.kind) {
			if e.status >= http.StatusInternalServerError {
				_ = c.Error(err)
			}
			c.JSON(e.status, gin.H{"message": message(err, e.kind)})
			return
		}
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"message": fallback, "error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": msg})
}

// message prefers the specific text of a kinded error over the kind's own.
func message(err, kind error) string {
	if msg, ok := services.SpecificMessage(err); ok {
		return msg
	}
	return kind.Error()
}
