package app

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	triggerPrefix   = "sd@"
	externalPrefix  = "~"
	triggerJobDelim = ":"
)

// TriggerName returns the virtual name of the cross-pipeline edge leaving the job, e.g. sd@12:main.
func TriggerName(pipelineID uint64, jobName string) string {
	return fmt.Sprintf("%s%d%s%s", triggerPrefix, pipelineID, triggerJobDelim, jobName)
}

// ExternalStartFrom returns the event start marker for a workflow resumed from the external trigger.
func ExternalStartFrom(pipelineID uint64, jobName string) string {
	return externalPrefix + TriggerName(pipelineID, jobName)
}

// ParseJobRef splits a join member or a trigger arrow into the pipeline id and the job name.
// Plain names belong to defaultPipelineID.
func ParseJobRef(name string, defaultPipelineID uint64) (uint64, string) {
	ref := strings.TrimPrefix(name, externalPrefix)
	if !strings.HasPrefix(ref, triggerPrefix) {
		return defaultPipelineID, ref
	}
	parts := strings.SplitN(strings.TrimPrefix(ref, triggerPrefix), triggerJobDelim, 2)
	if len(parts) != 2 {
		return defaultPipelineID, ref
	}
	pid, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return defaultPipelineID, ref
	}
	return pid, parts[1]
}

// IsExternalRef reports whether the name points to a job in another pipeline.
func IsExternalRef(name string) bool {
	return strings.HasPrefix(strings.TrimPrefix(name, externalPrefix), triggerPrefix)
}

// Upstream holds the finished build that fires the triggers together with its job, pipeline and event.
type Upstream struct {
	Pipeline Pipeline
	Job      Job
	Build    Build
	Event    Event
}

// TriggerName returns the virtual name of the edge leaving the upstream job.
func (u Upstream) TriggerName() string {
	return TriggerName(u.Pipeline.ID, u.Job.Name)
}
