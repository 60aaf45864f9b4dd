package server

import (
	"errors"
	"net/http"

	"github.com/danmuck/vetbook/internal/auth"
	"github.com/danmuck/vetbook/internal/booking"
	"github.com/gin-gonic/gin"
)

var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, booking.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrInvalid),
		errors.Is(err, auth.ErrInvalidAccount),
		errors.Is(err, auth.ErrInvalidRole),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrConflict), errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail aborts the request with the status mapped from err. Internal errors are
// logged through the request logger but not echoed to the client.
func fail(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		msg = "internal error"
	case http.StatusUnauthorized:
		msg = "unauthorized"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// bind decodes the JSON body into out, failing the request on error.
func bind(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		fail(c, errors.Join(errBadRequest, err))
		return false
	}
	return true
}
