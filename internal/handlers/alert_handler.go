package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adilet/payment-risk-engine/internal/interfaces"
	"github.com/adilet/payment-risk-engine/internal/models"
)

type AlertHandler struct {
	repo interfaces.AlertRepository
}

func NewAlertHandler(repo interfaces.AlertRepository) *AlertHandler {
	return &AlertHandler{repo: repo}
}

func (h *AlertHandler) GetAlert(c *gin.Context) {
	alert, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, models.ErrAlertNotFound) {
		c.JSON(http.StatusNotFound, errorBody("not_found", "alert not found", ""))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("storage_error", "failed to fetch alert", ""))
		return
	}
	c.JSON(http.StatusOK, alert)
}

type statusChangeRequest struct {
	Status models.AlertStatus `json:"status"`
}

// ChangeStatus moves an alert forward through pending -> under_review ->
// {resolved | escalated}. Transitions are one-way; anything else is
// rejected before touching storage.
func (h *AlertHandler) ChangeStatus(c *gin.Context) {
	var req statusChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("malformed_request", "request body must carry a status", "status"))
		return
	}

	alert, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, models.ErrAlertNotFound) {
		c.JSON(http.StatusNotFound, errorBody("not_found", "alert not found", ""))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("storage_error", "failed to fetch alert", ""))
		return
	}

	if !alert.Status.CanTransitionTo(req.Status) {
		c.JSON(http.StatusConflict, errorBody("invalid_transition",
			models.ErrInvalidAlertTransition.Error(), "status"))
		return
	}

	rows, err := h.repo.TransitionStatus(c.Request.Context(), alert.AlertID, alert.Status, req.Status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("storage_error", "failed to update alert", ""))
		return
	}
	if rows == 0 {
		// Someone else moved the alert between our read and write.
		c.JSON(http.StatusConflict, errorBody("invalid_transition",
			models.ErrInvalidAlertTransition.Error(), "status"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alert_id": alert.AlertID,
		"status":   req.Status,
	})
}
