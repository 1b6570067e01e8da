package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/competency-api/internal/service"
	appErrors "github.com/noah-isme/competency-api/pkg/errors"
	"github.com/noah-isme/competency-api/pkg/response"
)

// EvaluationHandler exposes evaluation recording, grading and finalization
// endpoints.
type EvaluationHandler struct {
	evaluations *service.EvaluationService
	exports     *service.ExportService
	metrics     *service.MetricsService
}

// NewEvaluationHandler constructs handler.
func NewEvaluationHandler(evaluations *service.EvaluationService, exports *service.ExportService, metrics *service.MetricsService) *EvaluationHandler {
	return &EvaluationHandler{evaluations: evaluations, exports: exports, metrics: metrics}
}

type pairRequest struct {
	SnapshotID string `json:"snapshot_id" binding:"required"`
}

// Record godoc
// @Summary Record one evaluation answer
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param payload body service.RecordEvaluationRequest true "Evaluation payload"
// @Success 200 {object} response.Envelope
// @Failure 408 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /evaluations [post]
func (h *EvaluationHandler) Record(c *gin.Context) {
	var req service.RecordEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	evaluation, err := h.evaluations.Record(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordEvaluation()
	response.JSON(c, http.StatusOK, evaluation)
}

// StudentLevel godoc
// @Summary Calculate a student's achieved level against a snapshot
// @Tags Evaluations
// @Produce json
// @Param id path string true "Student id"
// @Param snapshot_id query string true "Snapshot id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/level [get]
func (h *EvaluationHandler) StudentLevel(c *gin.Context) {
	snapshotID := c.Query("snapshot_id")
	if snapshotID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "snapshot_id is required"))
		return
	}
	result, err := h.evaluations.CalculateLevel(c.Request.Context(), c.Param("id"), snapshotID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Finalize godoc
// @Summary Freeze a student's level against a snapshot
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param id path string true "Student id"
// @Param payload body pairRequest true "Snapshot reference"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /students/{id}/finalize [post]
func (h *EvaluationHandler) Finalize(c *gin.Context) {
	var req pairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.evaluations.Finalize(c.Request.Context(), c.Param("id"), req.SnapshotID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordFinalization("finalize")
	response.JSON(c, http.StatusOK, result)
}

// Reopen godoc
// @Summary Reopen a finalized student/snapshot pair
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param id path string true "Student id"
// @Param payload body pairRequest true "Snapshot reference"
// @Success 204
// @Failure 422 {object} response.Envelope
// @Router /students/{id}/reopen [post]
func (h *EvaluationHandler) Reopen(c *gin.Context) {
	var req pairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.evaluations.Reopen(c.Request.Context(), c.Param("id"), req.SnapshotID); err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordFinalization("reopen")
	response.NoContent(c)
}

// FinalizeCohort godoc
// @Summary Finalize every evaluated student of a cohort against a snapshot
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param id path string true "Cohort id"
// @Param payload body pairRequest true "Snapshot reference"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /cohorts/{id}/finalize [post]
func (h *EvaluationHandler) FinalizeCohort(c *gin.Context) {
	var req pairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	results, err := h.evaluations.FinalizeCohort(c.Request.Context(), c.Param("id"), req.SnapshotID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordFinalization("finalize_cohort")
	response.JSON(c, http.StatusOK, results)
}

// Report godoc
// @Summary Cohort grading report, optionally exported as CSV or PDF
// @Tags Evaluations
// @Produce json
// @Param id path string true "Cohort id"
// @Param format query string false "json, csv or pdf" default(json)
// @Success 200 {object} response.Envelope
// @Router /cohorts/{id}/report [get]
func (h *EvaluationHandler) Report(c *gin.Context) {
	report, err := h.evaluations.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	switch c.DefaultQuery("format", "json") {
	case "json":
		response.JSON(c, http.StatusOK, report)
	case "csv":
		data, err := h.exports.RenderCSV(report)
		if err != nil {
			response.Error(c, err)
			return
		}
		h.sendFile(c, data, "text/csv", fmt.Sprintf("report-%s.csv", report.CohortID))
	case "pdf":
		data, err := h.exports.RenderPDF(report)
		if err != nil {
			response.Error(c, err)
			return
		}
		h.sendFile(c, data, "application/pdf", fmt.Sprintf("report-%s.pdf", report.CohortID))
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be json, csv or pdf"))
	}
}

func (h *EvaluationHandler) sendFile(c *gin.Context, data []byte, mimeType, filename string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, mimeType, data)
}
