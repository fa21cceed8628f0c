package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classtrack/classtrack-api/internal/service"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
	"github.com/classtrack/classtrack-api/pkg/response"
)

// LessonHandler exposes teacher comment sheet endpoints.
type LessonHandler struct {
	service *service.LessonService
}

// NewLessonHandler constructs a lesson handler.
func NewLessonHandler(svc *service.LessonService) *LessonHandler {
	return &LessonHandler{service: svc}
}

// Save godoc
// @Summary Save a comment sheet
// @Description Upserts the sheet for the class and date
// @Tags Lessons
// @Accept json
// @Produce json
// @Param payload body service.SaveCommentSheetRequest true "Sheet payload"
// @Success 200 {object} response.Envelope
// @Router /comment-sheets [post]
func (h *LessonHandler) Save(c *gin.Context) {
	var req service.SaveCommentSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	sheet, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// Get godoc
// @Summary Get one comment sheet
// @Tags Lessons
// @Produce json
// @Param id path int true "Sheet ID"
// @Success 200 {object} response.Envelope
// @Router /comment-sheets/{id} [get]
func (h *LessonHandler) Get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	sheet, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// GetByClassAndDate godoc
// @Summary Get the sheet for a class on a date
// @Tags Lessons
// @Produce json
// @Param id path int true "Class ID"
// @Param date query string true "Lesson date"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/comment-sheet [get]
func (h *LessonHandler) GetByClassAndDate(c *gin.Context) {
	classID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	date := c.Query("date")
	if date == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date query parameter required"))
		return
	}
	sheet, err := h.service.GetByClassAndDate(c.Request.Context(), classID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// List godoc
// @Summary List comment sheets
// @Tags Lessons
// @Produce json
// @Param class_id query int false "Filter by class"
// @Param date_from query string false "Range start"
// @Param date_to query string false "Range end"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /comment-sheets [get]
func (h *LessonHandler) List(c *gin.Context) {
	req := service.CommentSheetListRequest{
		ClassID:  int64Query(c, "class_id"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
		Page:     intQuery(c, "page", 1),
		PageSize: intQuery(c, "limit", 20),
	}

	sheets, pagination, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheets, pagination)
}

// Delete godoc
// @Summary Delete one comment sheet
// @Tags Lessons
// @Param id path int true "Sheet ID"
// @Success 204 {object} response.Envelope
// @Router /comment-sheets/{id} [delete]
func (h *LessonHandler) Delete(c *gin.Context) {
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
