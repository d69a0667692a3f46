package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"driverledger/service"
	"driverledger/storage"
)

// Body is the envelope of every API response.
type Body struct {
	Status    int         `json:"status"`
	Message   string      `json:"message"`
	Kind      string      `json:"kind,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Data      interface{} `json:"data"`
}

func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Body{
		Status:    status,
		Message:   "success",
		RequestID: c.GetString(contextKeyRequestID),
		Data:      data,
	})
}

func abortWithMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Body{
		Status:    status,
		Message:   message,
		RequestID: c.GetString(contextKeyRequestID),
	})
}

// abortWithError answers with the status of the registry failure in err.
// Unexpected failures do not leak their text to the caller.
func abortWithError(c *gin.Context, err error) {
	status := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	c.AbortWithStatusJSON(status, Body{
		Status:    status,
		Message:   message,
		Kind:      service.ErrorKind(err),
		RequestID: c.GetString(contextKeyRequestID),
	})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidArgument), errors.Is(err, service.ErrRatingOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidAuthority):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrAlreadyExists), errors.Is(err, storage.ErrConflictingMutation):
		return http.StatusConflict
	case errors.Is(err, storage.ErrInsufficientResources):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrArithmeticOverflow):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
