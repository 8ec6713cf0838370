package app

import (
	"context"
	"time"
)

// Build is a model that represents one execution attempt of a job within an event.
type Build struct {
	ID                uint64       `json:"id"`
	JobID             uint64       `json:"jobId"`
	EventID           uint64       `json:"eventId"`
	Status            Status       `json:"status"`
	ParentBuildIDs    []uint64     `json:"parentBuildId"`
	ParentBuilds      ParentBuilds `json:"parentBuilds"`
	SHA               string       `json:"sha"`
	ConfigPipelineSHA string       `json:"configPipelineSha"`
	BaseBranch        string       `json:"baseBranch"`
	PR                PR           `json:"pr"`
	Username          string       `json:"username"`
	ScmContext        string       `json:"scmContext"`
	Triggered         bool         `json:"triggered"`
	CreatedAt         time.Time    `json:"createTime"`
}

// HasParent reports whether the build was caused by the specific build.
func (b Build) HasParent(id uint64) bool {
	for _, p := range b.ParentBuildIDs {
		if p == id {
			return true
		}
	}
	return false
}

// BuildRepo describes interactions with the build DB.
type BuildRepo interface {
	FindByID(ctx context.Context, id uint64) (Build, error)
	FindByEventJob(ctx context.Context, eventID, jobID uint64) (Build, error)
	FindByEvent(ctx context.Context, eventID uint64) ([]Build, error)
	// FindLatestByGroupEvent returns the newest build per job across the event and its restarts.
	FindLatestByGroupEvent(ctx context.Context, groupEventID uint64) ([]Build, error)
	// FindUntriggered returns one finished build whose downstream jobs were not processed yet.
	FindUntriggered(ctx context.Context) (Build, error)
	Add(ctx context.Context, b Build) (Build, error)
	// UpdateStatus sets b.Status only if the stored status is one of from; it reports whether the row changed.
	UpdateStatus(ctx context.Context, b Build, from ...Status) (bool, error)
	// MergeParentBuilds merges the lineage into the stored one and appends parentBuildID under a row lock.
	MergeParentBuilds(ctx context.Context, id uint64, pb ParentBuilds, parentBuildID uint64) (Build, error)
	// ClaimTriggers flags the build as processed; it reports false when another caller already did.
	ClaimTriggers(ctx context.Context, id uint64) (bool, error)
}

// ExecutorSvc describes the execution dispatch collaborator.
type ExecutorSvc interface {
	Start(ctx context.Context, b Build) error
}

// TriggerSvc describes the trigger engine entry point.
type TriggerSvc interface {
	Run(ctx context.Context, buildID uint64) error
	Job(ctx context.Context) error
	Build(ctx context.Context, id uint64) (Build, error)
}
