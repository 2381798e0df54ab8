package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/services"
	"github.com/yeremiapane/restaurant-booking/utils"
)

type ReservationController struct {
	Scheduler *services.Scheduler
}

func NewReservationController(scheduler *services.Scheduler) *ReservationController {
	return &ReservationController{Scheduler: scheduler}
}

// CreateReservation -> book a table for the caller
func (rc *ReservationController) CreateReservation(c *gin.Context) {
	var req struct {
		TableID   string    `json:"table_id" binding:"required"`
		StartAt   time.Time `json:"start_at"`
		PartySize int       `json:"party_size"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	actor := currentActor(c)
	res, err := rc.Scheduler.CreateReservation(c.Request.Context(), req.TableID, req.StartAt, req.PartySize, actor.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Reservation created", res)
}

func (rc *ReservationController) GetReservations(c *gin.Context) {
	reservations, err := rc.Scheduler.ListReservations(c.Request.Context(), currentActor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of reservations", reservations)
}

func (rc *ReservationController) GetReservationByID(c *gin.Context) {
	res, err := rc.Scheduler.GetReservation(c.Request.Context(), c.Param("id"), currentActor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation detail", res)
}

func (rc *ReservationController) ConfirmReservation(c *gin.Context) {
	res, err := rc.Scheduler.ConfirmReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation confirmed", res)
}

func (rc *ReservationController) CancelReservation(c *gin.Context) {
	res, err := rc.Scheduler.CancelReservation(c.Request.Context(), c.Param("id"), currentActor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation cancelled", res)
}

// UpdateReservationStatus accepts {"status": "confirmed"|"cancelled"}.
// Confirming is reserved to staff.
func (rc *ReservationController) UpdateReservationStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	switch models.ReservationStatus(body.Status) {
	case models.ReservationConfirmed:
		if !currentActor(c).IsStaff() {
			utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
			return
		}
		rc.ConfirmReservation(c)
	case models.ReservationCancelled:
		rc.CancelReservation(c)
	default:
		utils.RespondKindError(c, http.StatusBadRequest, string(services.KindValidation),
			"status must be confirmed or cancelled", gin.H{"transitions": models.ReservationTransitions})
	}
}
