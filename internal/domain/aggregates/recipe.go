package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RecipeAggregate owns a recipe's version history. Each write runs in one
// transaction with the recipe row locked; failures are *Error values.
type RecipeAggregate interface {
	// SaveVersion appends the current content as version N (N = current counter) and bumps the counter.
	SaveVersion(ctx context.Context, in SaveVersionInput) (SaveVersionResult, error)

	// RestoreVersion snapshots the current content, bumps the counter and overwrites content with the target version.
	RestoreVersion(ctx context.Context, in RestoreVersionInput) (RestoreVersionResult, error)
}

type SaveVersionInput struct {
	RecipeID uuid.UUID
	UserID   uuid.UUID
	Message  string
	At       time.Time
}

type SaveVersionResult struct {
	RecipeID       uuid.UUID
	VersionID      uuid.UUID
	VersionNumber  int
	CurrentVersion int
	SavedAt        time.Time
}

type RestoreVersionInput struct {
	RecipeID  uuid.UUID
	VersionID uuid.UUID
	UserID    uuid.UUID
	At        time.Time
}

type RestoreVersionResult struct {
	RecipeID uuid.UUID
	// RestoredFrom is the version number whose content now lives in the recipe.
	RestoredFrom int
	// SnapshotVersionID is the pre-restore snapshot appended to history.
	SnapshotVersionID     uuid.UUID
	SnapshotVersionNumber int
	CurrentVersion        int
	RestoredAt            time.Time
}
