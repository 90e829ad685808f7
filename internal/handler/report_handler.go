package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noor-academy/school-api/internal/service"
	appErrors "github.com/noor-academy/school-api/pkg/errors"
	"github.com/noor-academy/school-api/pkg/response"
)

// ReportHandler wires HTTP endpoints to the report service.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler creates a new handler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

func cachedMeta(cached bool) map[string]interface{} {
	return map[string]interface{}{"cached": cached}
}

// Overview godoc
// @Summary Overview report
// @Description Top-level dashboard rollup across all collections
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/overview [get]
func (h *ReportHandler) Overview(c *gin.Context) {
	report, cached, err := h.reports.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil, cachedMeta(cached))
}

// Students godoc
// @Summary Students report
// @Description Student population grouped by class, level and status
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/students [get]
func (h *ReportHandler) Students(c *gin.Context) {
	report, cached, err := h.reports.Students(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil, cachedMeta(cached))
}

// Attendance godoc
// @Summary Attendance report
// @Description Daily and monthly attendance trends plus per-course rates
// @Tags Reports
// @Produce json
// @Param days query int false "Days in the daily trend" default(30)
// @Param months query int false "Months in the monthly trend" default(12)
// @Success 200 {object} response.Envelope
// @Router /reports/attendance [get]
func (h *ReportHandler) Attendance(c *gin.Context) {
	days := parseQueryInt(c, "days", 30)
	months := parseQueryInt(c, "months", 12)

	report, cached, err := h.reports.Attendance(c.Request.Context(), days, months)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil, cachedMeta(cached))
}

// Grades godoc
// @Summary Grades report
// @Description Grade band distribution, per-course averages and monthly trends
// @Tags Reports
// @Produce json
// @Param months query int false "Months in the trend" default(12)
// @Success 200 {object} response.Envelope
// @Router /reports/grades [get]
func (h *ReportHandler) Grades(c *gin.Context) {
	months := parseQueryInt(c, "months", 12)

	report, cached, err := h.reports.Grades(c.Request.Context(), months)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil, cachedMeta(cached))
}

// Comprehensive godoc
// @Summary Comprehensive report
// @Description Status rollups for every collection over an optional date range
// @Tags Reports
// @Produce json
// @Param start_date query string false "Range start (YYYY-MM-DD)"
// @Param end_date query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /reports/comprehensive [get]
func (h *ReportHandler) Comprehensive(c *gin.Context) {
	startDate, err := parseDateParam(c.Query("start_date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid start_date, expected YYYY-MM-DD"))
		return
	}
	endDate, err := parseDateParam(c.Query("end_date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid end_date, expected YYYY-MM-DD"))
		return
	}

	report, err := h.reports.Comprehensive(c.Request.Context(), startDate, endDate)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// StudentDashboard godoc
// @Summary Student dashboard
// @Description One student's attendance rate, grade average and recent activity
// @Tags Reports
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/student/{id} [get]
func (h *ReportHandler) StudentDashboard(c *gin.Context) {
	dashboard, err := h.reports.StudentDashboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}

// TeacherDashboard godoc
// @Summary Teacher dashboard
// @Description One teacher's courses, student reach and recent activity
// @Tags Reports
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/teacher/{id} [get]
func (h *ReportHandler) TeacherDashboard(c *gin.Context) {
	dashboard, err := h.reports.TeacherDashboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}

// Export godoc
// @Summary Export report
// @Description Render a report to CSV or PDF and return a signed download token
// @Tags Reports
// @Produce json
// @Param type query string true "Report type" Enums(overview, students, attendance, grades)
// @Param format query string false "File format" Enums(csv, pdf) default(csv)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports/export [post]
func (h *ReportHandler) Export(c *gin.Context) {
	reportType := c.Query("type")
	format := c.DefaultQuery("format", "csv")

	result, err := h.reports.Export(c.Request.Context(), reportType, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download exported report
// @Description Stream a previously exported file via its signed token
// @Tags Reports
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /reports/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	path, err := h.reports.ResolveDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.FileAttachment(path, filepath.Base(path))
}
