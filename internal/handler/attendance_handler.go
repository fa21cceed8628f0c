package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classtrack/classtrack-api/internal/service"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
	"github.com/classtrack/classtrack-api/pkg/response"
)

// AttendanceHandler exposes attendance marking and matrix endpoints.
type AttendanceHandler struct {
	service *service.AttendanceService
}

// NewAttendanceHandler constructs an attendance handler.
func NewAttendanceHandler(svc *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Mark godoc
// @Summary Mark attendance for one student
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.MarkAttendanceRequest true "Mark payload"
// @Success 200 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.service.Mark(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// BulkMark godoc
// @Summary Mark a whole roster for one date
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.BulkMarkAttendanceRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/bulk [post]
func (h *AttendanceHandler) BulkMark(c *gin.Context) {
	var req service.BulkMarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	records, err := h.service.BulkMark(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param class_id query int false "Filter by class"
// @Param student_id query int false "Filter by student"
// @Param status query string false "Filter by status glyph"
// @Param date_from query string false "Range start"
// @Param date_to query string false "Range end"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	req := service.AttendanceListRequest{
		ClassID:   int64Query(c, "class_id"),
		StudentID: int64Query(c, "student_id"),
		DateFrom:  c.Query("date_from"),
		DateTo:    c.Query("date_to"),
		Page:      intQuery(c, "page", 1),
		PageSize:  intQuery(c, "limit", 50),
	}
	if raw := c.Query("status"); raw != "" {
		req.Status = &raw
	}

	records, pagination, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Delete godoc
// @Summary Delete one attendance record
// @Tags Attendance
// @Param id path int true "Record ID"
// @Success 204 {object} response.Envelope
// @Router /attendance/{id} [delete]
func (h *AttendanceHandler) Delete(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Matrix godoc
// @Summary Attendance matrix for a class
// @Tags Attendance
// @Produce json
// @Param id path int true "Class ID"
// @Param start_date query string false "Range start"
// @Param end_date query string false "Range end"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/attendance-matrix [get]
func (h *AttendanceHandler) Matrix(c *gin.Context) {
	classID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	matrix, err := h.service.Matrix(c.Request.Context(), classID, c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, matrix, nil)
}

// ScheduleDates godoc
// @Summary Distinct lesson dates for a class
// @Tags Attendance
// @Produce json
// @Param id path int true "Class ID"
// @Param start_date query string false "Range start"
// @Param end_date query string false "Range end"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/schedule-dates [get]
func (h *AttendanceHandler) ScheduleDates(c *gin.Context) {
	classID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	scheduleDates, err := h.service.ScheduleDates(c.Request.Context(), classID, c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"dates": scheduleDates}, nil)
}

// Summaries godoc
// @Summary Per-student attendance summaries for a class
// @Tags Attendance
// @Produce json
// @Param id path int true "Class ID"
// @Param start_date query string false "Range start"
// @Param end_date query string false "Range end"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/attendance-summary [get]
func (h *AttendanceHandler) Summaries(c *gin.Context) {
	classID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	summaries, err := h.service.StudentSummaries(c.Request.Context(), classID, c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}
