package app

import (
	"context"
	"regexp"
)

var prJobNameRx = regexp.MustCompile(`^PR-\d+:(.+)$`)

// Job is a model that represents a pipeline job.
// Join and Triggers are resolved from the workflow definition before they reach this package.
type Job struct {
	ID         uint64   `json:"id"`
	PipelineID uint64   `json:"pipelineId"`
	Name       string   `json:"name"`
	State      Status   `json:"state"`
	Join       []string `json:"join"`
	Triggers   []string `json:"triggers"`
}

// IsPR reports whether the job is a pull request variant of another job.
func (j Job) IsPR() bool {
	return prJobNameRx.MatchString(j.Name)
}

// OriginalName returns the name of the job the PR variant was derived from.
func (j Job) OriginalName() string {
	m := prJobNameRx.FindStringSubmatch(j.Name)
	if len(m) < 2 {
		return j.Name
	}
	return m[1]
}

// IsJoin reports whether the job waits for all of its join members.
func (j Job) IsJoin() bool {
	return len(j.Join) > 0
}

// JoinsOn reports whether the join list names the trigger.
func (j Job) JoinsOn(triggerName string) bool {
	for _, name := range j.Join {
		if name == triggerName {
			return true
		}
	}
	return false
}

// JobRepo describes interactions with the job DB.
type JobRepo interface {
	FindByID(ctx context.Context, id uint64) (Job, error)
	FindByName(ctx context.Context, pipelineID uint64, name string) (Job, error)
}
