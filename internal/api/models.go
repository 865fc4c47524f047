package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/domain"
	"github.com/phrazzld/labelhive-api/internal/service"
)

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=12,max=72"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse defines the successful response for authentication endpoints.
type AuthResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	AccessToken string    `json:"token"`
	// ExpiresAt is RFC 3339.
	ExpiresAt string `json:"expires_at,omitempty"`
}

// CreateJobRequest defines the payload for POST /api/jobs.
type CreateJobRequest struct {
	Title                string   `json:"title"                  validate:"required,max=200"`
	Description          string   `json:"description"            validate:"max=4000"`
	Labels               []string `json:"labels"                 validate:"max=64,dive,required"`
	NumLabellersRequired int      `json:"num_labellers_required" validate:"required,gte=1,lte=1000"`
	Reward               int64    `json:"reward"                 validate:"gte=0"`
}

// UploadItemsRequest defines the payload for POST /api/jobs/{id}/items.
type UploadItemsRequest struct {
	FileNames []string `json:"file_names" validate:"required,min=1,dive,required"`
}

// SubmitLabelsRequest defines the payload for PUT /api/items/{id}/labels.
type SubmitLabelsRequest struct {
	Labels []string `json:"labels" validate:"required,min=1"`
}

// JobResponse is the wire form of a job.
type JobResponse struct {
	ID                   uuid.UUID `json:"id"`
	AuthorID             uuid.UUID `json:"author_id"`
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	Labels               []string  `json:"labels"`
	NumLabellersRequired int       `json:"num_labellers_required"`
	TotalBatches         int       `json:"total_batches"`
	Reward               int64     `json:"reward"`
	CreatedAt            time.Time `json:"created_at"`
}

// ClaimResponse is the wire form of a claim. Pending claims carry their expiry.
type ClaimResponse struct {
	UserID    uuid.UUID  `json:"user_id"`
	Completed bool       `json:"completed"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// BatchResponse is the wire form of a batch.
type BatchResponse struct {
	ID          uuid.UUID       `json:"id"`
	JobID       uuid.UUID       `json:"job_id"`
	BatchNumber int             `json:"batch_number"`
	Claims      []ClaimResponse `json:"claims"`
}

// ItemResponse is the wire form of an item as seen by one caller. Labels
// holds only the caller's own submission.
type ItemResponse struct {
	ID             uuid.UUID `json:"id"`
	JobID          uuid.UUID `json:"job_id"`
	BatchNumber    int       `json:"batch_number"`
	Position       int       `json:"position"`
	FileName       string    `json:"file_name"`
	Labels         []string  `json:"labels"`
	AssignedLabels []string  `json:"assigned_labels,omitempty"`
}

// UploadItemsResponse reports the result of partitioning uploaded items.
type UploadItemsResponse struct {
	JobID        uuid.UUID      `json:"job_id"`
	TotalBatches int            `json:"total_batches"`
	Items        []ItemResponse `json:"items"`
}

// LabelsResponse echoes the stored labels of a submission.
type LabelsResponse struct {
	ItemID uuid.UUID `json:"item_id"`
	Labels []string  `json:"labels"`
}

// AggregateResponse lists the consensus labels of every item in a job.
type AggregateResponse struct {
	JobID uuid.UUID               `json:"job_id"`
	Items []service.ItemAggregate `json:"items"`
}

// RatingResponse reports a user's rating. Unknown users rate -1.
type RatingResponse struct {
	UserID uuid.UUID `json:"user_id"`
	Rating float64   `json:"rating"`
}

func jobToResponse(job *domain.Job) JobResponse {
	labels := job.Labels
	if labels == nil {
		labels = []string{}
	}
	return JobResponse{
		ID:                   job.ID,
		AuthorID:             job.AuthorID,
		Title:                job.Title,
		Description:          job.Description,
		Labels:               labels,
		NumLabellersRequired: job.NumLabellersRequired,
		TotalBatches:         job.TotalBatches,
		Reward:               job.Reward,
		CreatedAt:            job.CreatedAt,
	}
}

func batchToResponse(batch *domain.Batch) BatchResponse {
	claims := make([]ClaimResponse, 0, len(batch.Claims))
	for _, c := range batch.Claims {
		claims = append(claims, ClaimResponse{
			UserID:    c.UserID,
			Completed: c.Completed,
			ExpiresAt: c.ExpiresAt,
		})
	}
	return BatchResponse{
		ID:          batch.ID,
		JobID:       batch.JobID,
		BatchNumber: batch.BatchNumber,
		Claims:      claims,
	}
}

func batchesToResponse(batches []*domain.Batch) []BatchResponse {
	out := make([]BatchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, batchToResponse(b))
	}
	return out
}

func itemsToResponse(items []*domain.Item, viewer uuid.UUID) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		labels := []string{}
		if sub, ok := item.SubmissionBy(viewer); ok {
			labels = sub.Labels
		}
		out = append(out, ItemResponse{
			ID:             item.ID,
			JobID:          item.JobID,
			BatchNumber:    item.BatchNumber,
			Position:       item.Position,
			FileName:       item.FileName,
			Labels:         labels,
			AssignedLabels: item.AssignedLabels,
		})
	}
	return out
}
