package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/middleware"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/response"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/service"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// JobAPI is the part of service.JobService the handler needs.
type JobAPI interface {
	Enqueue(ctx context.Context, userID string, req *model.GenerateTimetableRequest) (*model.GenerationJob, error)
	Get(ctx context.Context, id uuid.UUID, userID string) (*model.GenerationJob, error)
}

// JobHandler handles asynchronous generation jobs.
type JobHandler struct {
	jobs JobAPI
	log  zerolog.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobs JobAPI, log zerolog.Logger) *JobHandler {
	return &JobHandler{
		jobs: jobs,
		log:  log.With().Str("component", "job_handler").Logger(),
	}
}

// Enqueue godoc
// POST /api/v1/timetables/jobs
// Queues a generation and returns the job immediately.
func (h *JobHandler) Enqueue(c *gin.Context) {
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

	job, err := h.jobs.Enqueue(c.Request.Context(), userID, &req)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Enqueue failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"job": job})
}

// Get godoc
// GET /api/v1/timetables/jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
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

	job, err := h.jobs.Get(c.Request.Context(), id, userID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Get job failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"job": job})
}
