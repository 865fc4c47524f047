package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Job-specific validation errors
var (
	ErrJobIDEmpty            = errors.New("job ID cannot be empty")
	ErrJobAuthorIDEmpty      = errors.New("job author ID cannot be empty")
	ErrJobTitleEmpty         = errors.New("job title cannot be empty")
	ErrJobLabellersRequired  = errors.New("job must require at least one labeller per batch")
	ErrJobNegativeReward     = errors.New("job reward cannot be negative")
	ErrJobNegativeBatchCount = errors.New("job total batches cannot be negative")
	ErrJobDuplicateLabel     = errors.New("job label set contains duplicates")
)

// Job is a unit of labelling work authored by one user. TotalBatches is
// zero until items are uploaded, at which point it is set exactly once.
type Job struct {
	ID                   uuid.UUID `json:"id"`
	AuthorID             uuid.UUID `json:"author_id"`
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	Labels               []string  `json:"labels"`
	NumLabellersRequired int       `json:"num_labellers_required"`
	TotalBatches         int       `json:"total_batches"`
	Reward               int64     `json:"reward"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// NewJob creates a new Job owned by authorID.
// Returns an error if validation fails.
func NewJob(
	authorID uuid.UUID,
	title, description string,
	labels []string,
	numLabellersRequired int,
	reward int64,
) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:                   uuid.New(),
		AuthorID:             authorID,
		Title:                strings.TrimSpace(title),
		Description:          description,
		Labels:               labels,
		NumLabellersRequired: numLabellersRequired,
		Reward:               reward,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if job.Labels == nil {
		job.Labels = []string{}
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrJobIDEmpty
	}
	if j.AuthorID == uuid.Nil {
		return ErrJobAuthorIDEmpty
	}
	if j.Title == "" {
		return ErrJobTitleEmpty
	}
	if j.NumLabellersRequired < 1 {
		return ErrJobLabellersRequired
	}
	if j.Reward < 0 {
		return ErrJobNegativeReward
	}
	if j.TotalBatches < 0 {
		return ErrJobNegativeBatchCount
	}

	seen := make(map[string]struct{}, len(j.Labels))
	for _, label := range j.Labels {
		if err := ValidateLabelValue(label); err != nil {
			return err
		}
		if _, dup := seen[label]; dup {
			return ErrJobDuplicateLabel
		}
		seen[label] = struct{}{}
	}

	return nil
}

// HasItems reports whether items have already been partitioned into batches.
func (j *Job) HasItems() bool {
	return j.TotalBatches > 0
}

// AcceptsLabel reports whether value belongs to the job's target label set.
// A job without a declared label set accepts any value.
func (j *Job) AcceptsLabel(value string) bool {
	if len(j.Labels) == 0 {
		return true
	}
	for _, label := range j.Labels {
		if label == value {
			return true
		}
	}
	return false
}
