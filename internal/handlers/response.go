package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emineral/emineral-backend/internal/services"
)

// Every endpoint answers the same envelope: {success:true, data} or
// {success:false, error}.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func RespondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

func RespondErrorMessage(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{Success: false, Error: message})
}

// RespondServiceError maps the service sentinels onto HTTP statuses.
// Unexpected errors become a generic 500 so internals never leak.
func RespondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		RespondErrorMessage(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		RespondErrorMessage(c, http.StatusNotFound, "record not found")
	case errors.Is(err, services.ErrUnauthorized):
		RespondErrorMessage(c, http.StatusForbidden, "not authorized")
	case errors.Is(err, services.ErrConflict):
		RespondErrorMessage(c, http.StatusConflict, err.Error())
	default:
		RespondErrorMessage(c, http.StatusInternalServerError, "internal server error")
	}
}
