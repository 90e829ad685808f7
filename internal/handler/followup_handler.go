package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noor-academy/school-api/internal/models"
	"github.com/noor-academy/school-api/internal/service"
	appErrors "github.com/noor-academy/school-api/pkg/errors"
	"github.com/noor-academy/school-api/pkg/response"
)

// FollowupHandler wires HTTP endpoints to the parent follow-up service.
type FollowupHandler struct {
	followups *service.FollowupService
}

// NewFollowupHandler creates a new handler.
func NewFollowupHandler(followups *service.FollowupService) *FollowupHandler {
	return &FollowupHandler{followups: followups}
}

// List godoc
// @Summary List follow-ups
// @Description List parent follow-ups with filtering and pagination
// @Tags Followups
// @Produce json
// @Param search query string false "Search by subject or student name"
// @Param student_id query string false "Filter by student"
// @Param assigned_to query string false "Filter by assignee"
// @Param type query string false "Filter by type"
// @Param priority query string false "Filter by priority"
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /followups [get]
func (h *FollowupHandler) List(c *gin.Context) {
	var filter models.FollowupFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.StudentID = c.Query("student_id")
	filter.AssignedTo = c.Query("assigned_to")
	filter.Type = models.FollowupType(c.Query("type"))
	filter.Priority = models.FollowupPriority(c.Query("priority"))
	filter.Status = models.FollowupStatus(c.Query("status"))
	filter.Page = parseQueryInt(c, "page", 1)
	filter.PageSize = parseQueryInt(c, "limit", 10)

	followups, pagination, err := h.followups.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, followups, pagination)
}

// Get godoc
// @Summary Get follow-up
// @Description Get a parent follow-up by ID
// @Tags Followups
// @Produce json
// @Param id path string true "Follow-up ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /followups/{id} [get]
func (h *FollowupHandler) Get(c *gin.Context) {
	followup, err := h.followups.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, followup, nil)
}

// Create godoc
// @Summary Create follow-up
// @Description Schedule a parent follow-up assigned to the current user
// @Tags Followups
// @Accept json
// @Produce json
// @Param payload body service.CreateFollowupRequest true "Follow-up payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /followups [post]
func (h *FollowupHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateFollowupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid follow-up payload"))
		return
	}

	followup, err := h.followups.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, followup)
}

// Update godoc
// @Summary Update follow-up
// @Description Update a pending follow-up
// @Tags Followups
// @Accept json
// @Produce json
// @Param id path string true "Follow-up ID"
// @Param payload body service.UpdateFollowupRequest true "Follow-up payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /followups/{id} [put]
func (h *FollowupHandler) Update(c *gin.Context) {
	var req service.UpdateFollowupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid follow-up payload"))
		return
	}

	followup, err := h.followups.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, followup, nil)
}

// Complete godoc
// @Summary Complete follow-up
// @Description Record the parent's response and close the follow-up
// @Tags Followups
// @Accept json
// @Produce json
// @Param id path string true "Follow-up ID"
// @Param payload body service.CompleteFollowupRequest true "Completion payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /followups/{id}/complete [post]
func (h *FollowupHandler) Complete(c *gin.Context) {
	var req service.CompleteFollowupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid completion payload"))
		return
	}

	followup, err := h.followups.Complete(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, followup, nil)
}

// Delete godoc
// @Summary Delete follow-up
// @Description Delete a follow-up by ID
// @Tags Followups
// @Param id path string true "Follow-up ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /followups/{id} [delete]
func (h *FollowupHandler) Delete(c *gin.Context) {
	if err := h.followups.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Overdue godoc
// @Summary List overdue follow-ups
// @Description Pending follow-ups whose scheduled date has passed
// @Tags Followups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /followups/overdue [get]
func (h *FollowupHandler) Overdue(c *gin.Context) {
	followups, err := h.followups.ListOverdue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, followups, nil)
}

// Stats godoc
// @Summary Follow-up statistics
// @Description Rollup of follow-ups by status with priority counts
// @Tags Followups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /followups/stats [get]
func (h *FollowupHandler) Stats(c *gin.Context) {
	stats, err := h.followups.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
