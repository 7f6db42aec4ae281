package api

import (
	"errors"
	"net/http"

	"github.com/example/vexokart/internal/console"
	"github.com/example/vexokart/internal/domain/order"
	"github.com/example/vexokart/internal/scan"
	"github.com/gin-gonic/gin"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, order.ErrOrderNotFound), errors.Is(err, order.ErrInvalidToken):
		return http.StatusNotFound
	case errors.Is(err, order.ErrTerminal):
		return http.StatusConflict
	case errors.Is(err, order.ErrTokenExpired):
		return http.StatusGone
	case errors.Is(err, console.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, order.ErrInvalidItem),
		errors.Is(err, order.ErrMissingEmail),
		errors.Is(err, scan.ErrUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, console.ErrShippingDetailsRequired):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError hides internal failures behind a generic message; the
// request logger still sees the real error.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
