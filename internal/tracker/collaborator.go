package tracker

import (
	"context"

	"github.com/actionsum/focustrack/internal/models"
	"github.com/actionsum/focustrack/internal/storage"
)

// Collaborator is the persistence contract; see storage.Collaborator.
type Collaborator = storage.Collaborator

// ErrorRecorder stores failed ticks. Optional.
type ErrorRecorder = storage.ErrorRecorder

// SnapshotSink receives every rebuilt activity snapshot. A nil activity means nothing is focused.
type SnapshotSink interface {
	PublishActivity(ctx context.Context, userID string, activity *models.CurrentActivity) error
}
