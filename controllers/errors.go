package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-booking/services"
	"github.com/yeremiapane/restaurant-booking/utils"
)

var ErrNoPermission = errors.New("you do not have permission to perform this action")

// statusForKind maps a domain error kind to the HTTP status callers see.
func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation, services.KindCapacityExceeded, services.KindStockOverflow:
		return http.StatusBadRequest
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindSlotConflict, services.KindInsufficientStock, services.KindInvalidTransition,
		services.KindAlreadyCancelled, services.KindTableInUse, services.KindStaleVersion:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondServiceError writes err with its kind and details. Anything that is
// not a domain error is logged and hidden behind a generic message.
func respondServiceError(c *gin.Context, err error) {
	var de *services.Error
	if errors.As(err, &de) {
		var details interface{}
		if len(de.Details) > 0 {
			details = de.Details
		}
		utils.RespondKindError(c, statusForKind(de.Kind), string(de.Kind), de.Message, details)
		return
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		utils.RespondKindError(c, http.StatusServiceUnavailable, "timeout", "request deadline exceeded", nil)
		return
	}

	utils.ErrorLogger.WithField("path", c.Request.URL.Path).Errorf("Unhandled error: %v", err)
	utils.RespondKindError(c, http.StatusInternalServerError, "internal", "internal server error", nil)
}

// currentActor reads the identity set by the auth middleware.
func currentActor(c *gin.Context) services.Actor {
	return services.Actor{
		UserID: c.GetString("user_id"),
		Role:   c.GetString("role"),
	}
}
