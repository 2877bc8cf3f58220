package model

import "time"

// Artifact type constants, one per persisted stage output.
const (
	ArtifactResearch        = "research"
	ArtifactOutlines        = "outlines"
	ArtifactSubjectLines    = "subject_lines"
	ArtifactDraft           = "draft"
	ArtifactPolished        = "polished"
	ArtifactRevisionSummary = "revision_summary"
	ArtifactVisuals         = "visuals"
	ArtifactForecast        = "forecast"
	ArtifactPackage         = "package"
	ArtifactAnalysis        = "analysis"
)

// ArtifactFiles maps artifact types to their stage-named files under the artifact root.
var ArtifactFiles = map[string]string{
	ArtifactResearch:        "research.md",
	ArtifactOutlines:        "outlines.md",
	ArtifactSubjectLines:    "subject_lines.txt",
	ArtifactDraft:           "draft.md",
	ArtifactPolished:        "polished.md",
	ArtifactRevisionSummary: "revision_summary.md",
	ArtifactVisuals:         "visuals.txt",
	ArtifactForecast:        "forecast.md",
	ArtifactAnalysis:        "analysis.md",
}

// Created-by constants
const (
	CreatedBySystem = "system"
	CreatedByUser   = "user"
)

// Artifact is a stage output recorded in the run ledger.
type Artifact struct {
	ID           string `json:"id"`
	RunID        string `json:"run_id"`
	ArtifactType string `json:"artifact_type"`
	Path         string `json:"path"`
	Payload      string `json:"payload"`
	CreatedBy    string `json:"created_by"`
	CreatedAt    string `json:"created_at"`
}

// NewArtifact creates a new system-generated Artifact.
func NewArtifact(id, runID, artifactType, path, payload string) Artifact {
	return Artifact{
		ID:           id,
		RunID:        runID,
		ArtifactType: artifactType,
		Path:         path,
		Payload:      payload,
		CreatedBy:    CreatedBySystem,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
}
