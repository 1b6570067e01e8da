package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/competency-api/internal/service"
	appErrors "github.com/noah-isme/competency-api/pkg/errors"
	"github.com/noah-isme/competency-api/pkg/response"
)

// TemplateHandler exposes rubric template endpoints.
type TemplateHandler struct {
	templates  *service.TemplateService
	thresholds *service.ThresholdService
}

// NewTemplateHandler constructs handler.
func NewTemplateHandler(templates *service.TemplateService, thresholds *service.ThresholdService) *TemplateHandler {
	return &TemplateHandler{templates: templates, thresholds: thresholds}
}

// Create godoc
// @Summary Create a rubric template
// @Tags Templates
// @Accept json
// @Produce json
// @Param payload body service.CreateTemplateRequest true "Template payload"
// @Success 201 {object} response.Envelope
// @Router /templates [post]
func (h *TemplateHandler) Create(c *gin.Context) {
	var req service.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	template, err := h.templates.Create(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, template)
}

// List godoc
// @Summary List rubric templates
// @Tags Templates
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /templates [get]
func (h *TemplateHandler) List(c *gin.Context) {
	templates, err := h.templates.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates)
}

// Get godoc
// @Summary Get one template
// @Tags Templates
// @Produce json
// @Param id path string true "Template id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /templates/{id} [get]
func (h *TemplateHandler) Get(c *gin.Context) {
	template, err := h.templates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, template)
}

// Structure godoc
// @Summary Get a template's capabilities, criteria and thresholds
// @Tags Templates
// @Produce json
// @Param id path string true "Template id"
// @Success 200 {object} response.Envelope
// @Router /templates/{id}/structure [get]
func (h *TemplateHandler) Structure(c *gin.Context) {
	structure, err := h.templates.Structure(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structure)
}

// ImportStructure godoc
// @Summary Replace a template's whole structure
// @Tags Templates
// @Accept json
// @Produce json
// @Param id path string true "Template id"
// @Param payload body service.ImportStructureRequest true "Structure payload"
// @Success 200 {object} response.Envelope
// @Router /templates/{id}/structure [put]
func (h *TemplateHandler) ImportStructure(c *gin.Context) {
	var req service.ImportStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	structure, err := h.templates.ImportStructure(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structure)
}

// AddCapability godoc
// @Summary Add a capability to a template
// @Tags Templates
// @Accept json
// @Produce json
// @Param id path string true "Template id"
// @Param payload body service.AddCapabilityRequest true "Capability payload"
// @Success 201 {object} response.Envelope
// @Router /templates/{id}/capabilities [post]
func (h *TemplateHandler) AddCapability(c *gin.Context) {
	var req service.AddCapabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	capability, err := h.templates.AddCapability(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, capability)
}

// AddCriterion godoc
// @Summary Add a criterion to a capability
// @Tags Templates
// @Accept json
// @Produce json
// @Param id path string true "Capability id"
// @Param payload body service.AddCriterionRequest true "Criterion payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /capabilities/{id}/criteria [post]
func (h *TemplateHandler) AddCriterion(c *gin.Context) {
	var req service.AddCriterionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	criterion, err := h.templates.AddCriterion(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, criterion)
}

// GenerateThresholds godoc
// @Summary Regenerate a template's threshold table from its criterion counts
// @Tags Templates
// @Produce json
// @Param id path string true "Template id"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /templates/{id}/thresholds [post]
func (h *TemplateHandler) GenerateThresholds(c *gin.Context) {
	table, err := h.thresholds.GeneratePreview(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, table)
}

// PreviewThresholds godoc
// @Summary Preview a threshold table for arbitrary criterion counts
// @Tags Templates
// @Produce json
// @Param critical query int true "Critical criterion count"
// @Param desirable query int true "Desirable criterion count"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /thresholds/preview [get]
func (h *TemplateHandler) PreviewThresholds(c *gin.Context) {
	critical, err := strconv.Atoi(c.DefaultQuery("critical", "0"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "critical must be an integer"))
		return
	}
	desirable, err := strconv.Atoi(c.DefaultQuery("desirable", "0"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "desirable must be an integer"))
		return
	}
	table, err := h.thresholds.Preview(critical, desirable)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, table)
}

// CoverageGaps godoc
// @Summary List capabilities without a critical criterion
// @Tags Templates
// @Produce json
// @Param id path string true "Template id"
// @Success 200 {object} response.Envelope
// @Router /templates/{id}/coverage-gaps [get]
func (h *TemplateHandler) CoverageGaps(c *gin.Context) {
	gaps, err := h.templates.CoverageGaps(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gaps)
}

// Delete godoc
// @Summary Delete a template
// @Tags Templates
// @Param id path string true "Template id"
// @Success 204
// @Router /templates/{id} [delete]
func (h *TemplateHandler) Delete(c *gin.Context) {
	if err := h.templates.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
