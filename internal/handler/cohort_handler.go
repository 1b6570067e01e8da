package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/competency-api/internal/service"
	appErrors "github.com/noah-isme/competency-api/pkg/errors"
	"github.com/noah-isme/competency-api/pkg/response"
)

// CohortHandler exposes cohort and roster endpoints.
type CohortHandler struct {
	cohorts *service.CohortService
}

// NewCohortHandler constructs handler.
func NewCohortHandler(cohorts *service.CohortService) *CohortHandler {
	return &CohortHandler{cohorts: cohorts}
}

// Create godoc
// @Summary Create a cohort with its responsible teachers
// @Tags Cohorts
// @Accept json
// @Produce json
// @Param payload body service.SaveCohortRequest true "Cohort payload"
// @Success 201 {object} response.Envelope
// @Router /cohorts [post]
func (h *CohortHandler) Create(c *gin.Context) {
	var req service.SaveCohortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	cohort, err := h.cohorts.Create(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cohort)
}

// Update godoc
// @Summary Rename a cohort and replace its teacher set
// @Tags Cohorts
// @Accept json
// @Produce json
// @Param id path string true "Cohort id"
// @Param payload body service.SaveCohortRequest true "Cohort payload"
// @Success 200 {object} response.Envelope
// @Router /cohorts/{id} [put]
func (h *CohortHandler) Update(c *gin.Context) {
	var req service.SaveCohortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	cohort, err := h.cohorts.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cohort)
}

// List godoc
// @Summary List cohorts visible to the caller
// @Tags Cohorts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /cohorts [get]
func (h *CohortHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	cohorts, err := h.cohorts.List(c.Request.Context(), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cohorts)
}

// Get godoc
// @Summary Get one cohort with teachers and roster size
// @Tags Cohorts
// @Produce json
// @Param id path string true "Cohort id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cohorts/{id} [get]
func (h *CohortHandler) Get(c *gin.Context) {
	detail, err := h.cohorts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail)
}

type rebindRequest struct {
	TemplateID string `json:"template_id" binding:"required"`
}

// RebindSnapshot godoc
// @Summary Cut a fresh snapshot from a template and bind the cohort to it
// @Tags Cohorts
// @Accept json
// @Produce json
// @Param id path string true "Cohort id"
// @Param payload body rebindRequest true "Template reference"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /cohorts/{id}/snapshot [put]
func (h *CohortHandler) RebindSnapshot(c *gin.Context) {
	var req rebindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	structure, err := h.cohorts.RebindSnapshot(c.Request.Context(), c.Param("id"), req.TemplateID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structure)
}

// EnrollStudent godoc
// @Summary Enroll one student in a cohort
// @Tags Cohorts
// @Accept json
// @Produce json
// @Param id path string true "Cohort id"
// @Param payload body service.EnrollStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Router /cohorts/{id}/students [post]
func (h *CohortHandler) EnrollStudent(c *gin.Context) {
	var req service.EnrollStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.cohorts.EnrollStudent(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// ImportRoster godoc
// @Summary Enroll a batch of students in one call
// @Tags Cohorts
// @Accept json
// @Produce json
// @Param id path string true "Cohort id"
// @Param payload body service.ImportRosterRequest true "Roster payload"
// @Success 201 {object} response.Envelope
// @Router /cohorts/{id}/students/import [post]
func (h *CohortHandler) ImportRoster(c *gin.Context) {
	var req service.ImportRosterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	students, err := h.cohorts.ImportRoster(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, students)
}

// Roster godoc
// @Summary List a cohort's students
// @Tags Cohorts
// @Produce json
// @Param id path string true "Cohort id"
// @Success 200 {object} response.Envelope
// @Router /cohorts/{id}/students [get]
func (h *CohortHandler) Roster(c *gin.Context) {
	students, err := h.cohorts.Roster(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students)
}

// Delete godoc
// @Summary Delete a cohort
// @Tags Cohorts
// @Param id path string true "Cohort id"
// @Success 204
// @Router /cohorts/{id} [delete]
func (h *CohortHandler) Delete(c *gin.Context) {
	if err := h.cohorts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
