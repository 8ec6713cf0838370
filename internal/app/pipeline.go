package app

import "context"

// Pipeline is a model that represents a pipeline, the container of jobs and events.
type Pipeline struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	ScmURI     string `json:"scmUri"`
	ScmContext string `json:"scmContext"`
}

// PipelineRepo describes interactions with the pipeline DB.
type PipelineRepo interface {
	FindByID(ctx context.Context, id uint64) (Pipeline, error)
}
