package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/logger"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/middleware"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/response"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/service"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/timetable"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TimetableAPI is the part of service.TimetableService the handler needs.
type TimetableAPI interface {
	Generate(ctx context.Context, userID string, req *model.GenerateTimetableRequest, progress timetable.ProgressFunc) (*service.GenerateResult, error)
	Get(ctx context.Context, id uuid.UUID, userID string) (*model.Timetable, error)
	List(ctx context.Context, userID string, page, perPage int) ([]model.TimetableSummary, int, error)
	Delete(ctx context.Context, id uuid.UUID, userID string) error
}

// TimetableHandler handles timetable generation and retrieval.
type TimetableHandler struct {
	timetables TimetableAPI
	log        zerolog.Logger
}

// NewTimetableHandler creates a new TimetableHandler.
func NewTimetableHandler(timetables TimetableAPI, log zerolog.Logger) *TimetableHandler {
	return &TimetableHandler{
		timetables: timetables,
		log:        log.With().Str("component", "timetable_handler").Logger(),
	}
}

// Generate godoc
// POST /api/v1/timetables/generate
// Generates and stores a timetable synchronously.
func (h *TimetableHandler) Generate(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.GenerateTimetableRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.timetables.Generate(c.Request.Context(), userID, &req, nil)
	if err != nil {
		h.failGeneration(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"timetable": res.Timetable,
		"report":    res.Timetable.Report,
		"cached":    res.Cached,
	})
}

// List godoc
// GET /api/v1/timetables
// Lists the caller's timetables, newest first.
func (h *TimetableHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	page, perPage = service.NormalizePage(page, perPage)

	items, total, err := h.timetables.List(c.Request.Context(), userID, page, perPage)
	if err != nil {
		h.logger(c).Error().Err(err).Msg("List timetables failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"timetables": items},
		response.NewPagination(page, perPage, total))
}

// Get godoc
// GET /api/v1/timetables/:id
func (h *TimetableHandler) Get(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	t, err := h.timetables.Get(c.Request.Context(), id, userID)
	if err != nil {
		if errors.Is(err, service.ErrTimetableNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.logger(c).Error().Err(err).Msg("Get timetable failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"timetable": t})
}

// Delete godoc
// DELETE /api/v1/timetables/:id
func (h *TimetableHandler) Delete(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.timetables.Delete(c.Request.Context(), id, userID); err != nil {
		if errors.Is(err, service.ErrTimetableNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.logger(c).Error().Err(err).Msg("Delete timetable failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// failGeneration maps pipeline errors to the API envelope.
func (h *TimetableHandler) failGeneration(c *gin.Context, err error) {
	status, code := GenerationErrorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger(c).Error().Err(err).Msg("Timetable generation failed")
	}
	if code == response.ErrInternal {
		response.Fail(c, status, code)
		return
	}
	response.FailWithDetail(c, status, code, err.Error())
}

func (h *TimetableHandler) logger(c *gin.Context) *zerolog.Logger {
	l := logger.FromContext(c.Request.Context(), h.log)
	return &l
}

// GenerationErrorStatus returns the HTTP status and error code for a
// generation failure.
func GenerationErrorStatus(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, timetable.ErrInvalidTimezone):
		return http.StatusBadRequest, response.ErrInvalidTimezone
	case errors.Is(err, timetable.ErrInvalidRange), errors.Is(err, timetable.ErrRangeTooLong):
		return http.StatusBadRequest, response.ErrInvalidRange
	case errors.Is(err, timetable.ErrNoTopics):
		return http.StatusUnprocessableEntity, response.ErrNoTopics
	case errors.Is(err, timetable.ErrNoAvailability):
		return http.StatusUnprocessableEntity, response.ErrNoAvailability
	case errors.Is(err, timetable.ErrAIOutputInvalid):
		return http.StatusBadGateway, response.ErrAIOutputInvalid
	case errors.Is(err, timetable.ErrAIUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway, response.ErrAIUnavailable
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
