package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/rl1809/storefront/internal/core/service"
)

func message(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"message": msg})
}

// fail maps a service error onto an HTTP status. Validation and business-rule
// errors surface with their own message; anything unrecognized is logged and
// returned as a generic 500.
func fail(c *gin.Context, err error) {
	var validation *service.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": validation.Fields})
		return
	}

	var insufficient *service.InsufficientInventoryError
	var missingProduct *service.ProductNotFoundError
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken):
		message(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrCardNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrUserNotFound):
		message(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrOrderNotCancellable),
		errors.Is(err, service.ErrOrderCancelled),
		errors.Is(err, service.ErrInvalidOrderStatus),
		errors.Is(err, service.ErrNoAttributes),
		errors.As(err, &insufficient),
		errors.As(err, &missingProduct):
		message(c, http.StatusBadRequest, err.Error())
	default:
		var invalidAttr *service.InvalidAttributeError
		if errors.As(err, &invalidAttr) {
			message(c, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		message(c, http.StatusInternalServerError, "internal server error")
	}
}
