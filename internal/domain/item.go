package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxLabelLength is the longest label value accepted, in bytes.
	MaxLabelLength = 256

	// MaxLabelsPerSubmission bounds the number of values in one submission.
	MaxLabelsPerSubmission = 64
)

// Item-specific validation errors
var (
	ErrItemIDEmpty       = errors.New("item ID cannot be empty")
	ErrItemJobIDEmpty    = errors.New("item job ID cannot be empty")
	ErrItemFileNameEmpty = errors.New("item file name cannot be empty")
	ErrItemBatchNumber   = errors.New("item batch number cannot be negative")
)

// LabelSubmission is one labeller's set of values for an item. Values keep
// the order the labeller submitted them in.
type LabelSubmission struct {
	UserID    uuid.UUID `json:"user_id"`
	Labels    []string  `json:"labels"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Item is one uploaded image. BatchNumber is assigned when the item is
// created and never changes; Position is its index within the upload.
// AssignedLabels is the consensus ordering written by aggregation and is
// nil until aggregation has run.
type Item struct {
	ID             uuid.UUID         `json:"id"`
	JobID          uuid.UUID         `json:"job_id"`
	BatchNumber    int               `json:"batch_number"`
	Position       int               `json:"position"`
	FileName       string            `json:"file_name"`
	Submissions    []LabelSubmission `json:"submissions"`
	AssignedLabels []string          `json:"assigned_labels,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// NewItem creates an item for jobID placed in batchNumber.
func NewItem(jobID uuid.UUID, batchNumber int, fileName string) (*Item, error) {
	item := &Item{
		ID:          uuid.New(),
		JobID:       jobID,
		BatchNumber: batchNumber,
		FileName:    strings.TrimSpace(fileName),
		Submissions: []LabelSubmission{},
		CreatedAt:   time.Now().UTC(),
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}

	return item, nil
}

// Validate checks if the Item has valid data.
func (i *Item) Validate() error {
	if i.ID == uuid.Nil {
		return ErrItemIDEmpty
	}
	if i.JobID == uuid.Nil {
		return ErrItemJobIDEmpty
	}
	if i.FileName == "" {
		return ErrItemFileNameEmpty
	}
	if i.BatchNumber < 0 {
		return ErrItemBatchNumber
	}
	return nil
}

// SubmissionBy returns the submission made by userID, if any.
func (i *Item) SubmissionBy(userID uuid.UUID) (*LabelSubmission, bool) {
	for idx := range i.Submissions {
		if i.Submissions[idx].UserID == userID {
			return &i.Submissions[idx], true
		}
	}
	return nil, false
}

// ValidateLabelValue checks the shape of a single label value.
func ValidateLabelValue(value string) error {
	if strings.TrimSpace(value) == "" {
		return NewValidationError("label", "cannot be blank", ErrInvalidLabel)
	}
	if len(value) > MaxLabelLength {
		return NewValidationError(
			"label",
			fmt.Sprintf("must be at most %d bytes", MaxLabelLength),
			ErrInvalidLabel,
		)
	}
	return nil
}

// ValidateLabelValues checks a whole submission.
func ValidateLabelValues(values []string) error {
	if len(values) == 0 {
		return NewValidationError("labels", "cannot be empty", ErrInvalidLabel)
	}
	if len(values) > MaxLabelsPerSubmission {
		return NewValidationError(
			"labels",
			fmt.Sprintf("must contain at most %d values", MaxLabelsPerSubmission),
			ErrInvalidLabel,
		)
	}
	for _, v := range values {
		if err := ValidateLabelValue(v); err != nil {
			return err
		}
	}
	return nil
}
