package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/competency-api/internal/service"
	"github.com/noah-isme/competency-api/pkg/response"
)

// SnapshotHandler exposes snapshot endpoints.
type SnapshotHandler struct {
	snapshots *service.SnapshotService
}

// NewSnapshotHandler constructs handler.
func NewSnapshotHandler(snapshots *service.SnapshotService) *SnapshotHandler {
	return &SnapshotHandler{snapshots: snapshots}
}

// Build godoc
// @Summary Cut an immutable snapshot from a template
// @Tags Snapshots
// @Produce json
// @Param id path string true "Template id"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /templates/{id}/snapshots [post]
func (h *SnapshotHandler) Build(c *gin.Context) {
	structure, err := h.snapshots.Build(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, structure)
}

// ListByTemplate godoc
// @Summary List the snapshots cut from a template
// @Tags Snapshots
// @Produce json
// @Param id path string true "Template id"
// @Success 200 {object} response.Envelope
// @Router /templates/{id}/snapshots [get]
func (h *SnapshotHandler) ListByTemplate(c *gin.Context) {
	snapshots, err := h.snapshots.ListByTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshots)
}

// Structure godoc
// @Summary Get a snapshot's frozen capabilities, criteria and thresholds
// @Tags Snapshots
// @Produce json
// @Param id path string true "Snapshot id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /snapshots/{id} [get]
func (h *SnapshotHandler) Structure(c *gin.Context) {
	structure, err := h.snapshots.Structure(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structure)
}

// Delete godoc
// @Summary Delete an unused snapshot
// @Tags Snapshots
// @Param id path string true "Snapshot id"
// @Success 204
// @Router /snapshots/{id} [delete]
func (h *SnapshotHandler) Delete(c *gin.Context) {
	if err := h.snapshots.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
