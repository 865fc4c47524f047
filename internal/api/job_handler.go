package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/labelhive-api/internal/api/shared"
	"github.com/phrazzld/labelhive-api/internal/platform/logger"
	"github.com/phrazzld/labelhive-api/internal/service"
)

// JobHandler serves job creation, item upload, progress and aggregation.
type JobHandler struct {
	jobs    *service.JobService
	batches *service.BatchService
	labels  *service.LabelService
	logger  *slog.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(
	jobs *service.JobService,
	batches *service.BatchService,
	labels *service.LabelService,
	log *slog.Logger,
) *JobHandler {
	if log == nil {
		log = slog.Default()
	}
	return &JobHandler{
		jobs:    jobs,
		batches: batches,
		labels:  labels,
		logger:  log.With(slog.String("component", "job_handler")),
	}
}

// CreateJob handles POST /api/jobs. The caller becomes the job's author.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateJobRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	job, err := h.jobs.CreateJob(r.Context(), service.CreateJobInput{
		AuthorID:             userID,
		Title:                req.Title,
		Description:          req.Description,
		Labels:               req.Labels,
		NumLabellersRequired: req.NumLabellersRequired,
		Reward:               req.Reward,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, jobToResponse(job))
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(job))
}

// UploadItems handles POST /api/jobs/{id}/items. Only the author may upload,
// and only once.
func (h *JobHandler) UploadItems(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req UploadItemsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.batches.UploadItems(r.Context(), service.UploadItemsInput{
		JobID:     chi.URLParam(r, "id"),
		UserID:    userID,
		FileNames: req.FileNames,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, UploadItemsResponse{
		JobID:        result.JobID,
		TotalBatches: result.TotalBatches,
		Items:        itemsToResponse(result.Items, userID),
	})
}

// Progress handles GET /api/jobs/{id}/progress.
func (h *JobHandler) Progress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.batches.ComputeProgress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, progress)
}

// Aggregate handles POST /api/jobs/{id}/aggregate. Only the author may
// trigger it.
func (h *JobHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	job, err := h.jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if job.AuthorID != userID {
		HandleAPIError(w, r, service.ErrNotJobAuthor, "")
		return
	}

	items, err := h.labels.AggregateJobLabels(r.Context(), job.ID.String())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to aggregate labels")
		return
	}
	if items == nil {
		items = []service.ItemAggregate{}
	}

	log.Debug("aggregate served", slog.String("job_id", job.ID.String()), slog.Int("items", len(items)))
	shared.RespondWithJSON(w, r, http.StatusOK, AggregateResponse{JobID: job.ID, Items: items})
}
