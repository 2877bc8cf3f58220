package store

import (
	"context"

	"github.com/yangwenmai/letterpress/internal/model"
)

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	Status []string
	Limit  int
}

// RunReader provides read access to runs.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*model.RunWithArtifacts, error)
	ListRuns(ctx context.Context, f RunFilter) ([]model.Run, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// RunWriter provides write access to runs.
type RunWriter interface {
	CreateRun(ctx context.Context, run model.Run) error
	UpdateRunStatus(ctx context.Context, id, newStatus string, errorInfo *string) error
	SetRunArchive(ctx context.Context, id, path string) error
}

// RunClaimer provides atomic claim operations for background processing.
type RunClaimer interface {
	ClaimNextQueued(ctx context.Context) (*model.Run, error)
	ResetStaleRunning(ctx context.Context) (int64, error)
}

// ArtifactStore provides access to artifact persistence.
type ArtifactStore interface {
	UpsertArtifact(ctx context.Context, a model.Artifact) error
}

// RunRepository combines all run-related operations for the API layer.
type RunRepository interface {
	RunReader
	RunWriter
	ArtifactStore
}
