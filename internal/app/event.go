package app

import (
	"context"
	"time"
)

// EventTypePipeline defines the type of events created by the trigger engine.
const EventTypePipeline = "pipeline"

// PR is a model that contains the pull request metadata of an event or a build.
type PR struct {
	Ref        string `json:"ref"`
	Source     string `json:"prSource"`
	URL        string `json:"url"`
	BranchName string `json:"prBranchName"`
}

// Event is a model that represents one triggered run of a pipeline workflow.
// Zero ParentEventID and GroupEventID mean absent.
type Event struct {
	ID                uint64       `json:"id"`
	PipelineID        uint64       `json:"pipelineId"`
	Type              string       `json:"type"`
	SHA               string       `json:"sha"`
	ConfigPipelineSHA string       `json:"configPipelineSha"`
	BaseBranch        string       `json:"baseBranch"`
	StartFrom         string       `json:"startFrom"`
	CauseMessage      string       `json:"causeMessage"`
	ParentBuildIDs    []uint64     `json:"parentBuildId"`
	ParentBuilds      ParentBuilds `json:"parentBuilds"`
	ParentEventID     uint64       `json:"parentEventId"`
	GroupEventID      uint64       `json:"groupEventId"`
	PR                PR           `json:"pr"`
	CreatedAt         time.Time    `json:"createTime"`
}

// GroupID returns the root event id of the restart family.
func (e Event) GroupID() uint64 {
	if e.GroupEventID != 0 {
		return e.GroupEventID
	}
	return e.ID
}

// EventRepo describes interactions with the event DB.
type EventRepo interface {
	FindByID(ctx context.Context, id uint64) (Event, error)
	FindByParent(ctx context.Context, parentEventID uint64) ([]Event, error)
	Add(ctx context.Context, e Event) (Event, error)
}
