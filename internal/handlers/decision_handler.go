package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adilet/payment-risk-engine/internal/interfaces"
	"github.com/adilet/payment-risk-engine/internal/models"
	"github.com/adilet/payment-risk-engine/internal/service"
	"github.com/adilet/payment-risk-engine/internal/telemetry"
)

type DecisionHandler struct {
	pipeline *service.Pipeline
	verdicts interfaces.VerdictRepository
	audits   interfaces.AuditRepository
}

func NewDecisionHandler(pipeline *service.Pipeline, verdicts interfaces.VerdictRepository, audits interfaces.AuditRepository) *DecisionHandler {
	return &DecisionHandler{pipeline: pipeline, verdicts: verdicts, audits: audits}
}

// errorBody is the structured error object every endpoint returns; there
// are no bare-string errors on the wire.
func errorBody(code, message, field string) gin.H {
	e := gin.H{"code": code, "message": message}
	if field != "" {
		e["field"] = field
	}
	return gin.H{"error": e}
}

func (h *DecisionHandler) Decide(c *gin.Context) {
	var req models.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("malformed_request", "request body is not a valid decision request", ""))
		return
	}

	v, err := h.pipeline.Decide(c.Request.Context(), &req)
	if err != nil {
		var validation *models.ValidationError
		if errors.As(err, &validation) {
			c.JSON(http.StatusUnprocessableEntity, errorBody("validation_error", validation.Error(), validation.Field))
			return
		}
		telemetry.Logger.Error("decision failed",
			zap.String("payment_id", req.Payment.PaymentID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, errorBody("decision_failed", "decision could not be completed", ""))
		return
	}

	c.JSON(http.StatusOK, v)
}

func (h *DecisionHandler) GetVerdict(c *gin.Context) {
	v, err := h.verdicts.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, models.ErrVerdictNotFound) {
		c.JSON(http.StatusNotFound, errorBody("not_found", "verdict not found", ""))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("storage_error", "failed to fetch verdict", ""))
		return
	}
	c.JSON(http.StatusOK, v)
}

// GetAuditTrail returns every audit entry recorded under one trace id, in
// order, so a decision can be reconstructed for review.
func (h *DecisionHandler) GetAuditTrail(c *gin.Context) {
	entries, err := h.audits.ListByTraceID(c.Request.Context(), c.Param("trace_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("storage_error", "failed to fetch audit trail", ""))
		return
	}
	c.JSON(http.StatusOK, gin.H{"trace_id": c.Param("trace_id"), "entries": entries})
}
