package app

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ParentBuilds records per upstream pipeline which builds have contributed to a downstream build.
// A job present with build id 0 is required but not known yet.
type ParentBuilds map[uint64]ParentBuildsEntry

// ParentBuildsEntry holds the contributing event and the job name to build id mapping of one pipeline.
type ParentBuildsEntry struct {
	EventID uint64            `json:"eventId"`
	Jobs    map[string]uint64 `json:"jobs"`
}

// SeedParentBuilds initializes the lineage of a build of a job in the target pipeline.
// The join members are registered as unknown, the upstream job is recorded as a contributor,
// and the lineage the upstream build inherited is carried over.
func SeedParentBuilds(up Upstream, join []string, targetPipelineID uint64) ParentBuilds {
	joinPB := make(ParentBuilds, len(join))
	for _, name := range join {
		pid, jobName := ParseJobRef(name, targetPipelineID)
		joinPB.Require(pid, jobName)
	}
	current := ParentBuilds{
		up.Pipeline.ID: {
			EventID: up.Event.ID,
			Jobs:    map[string]uint64{up.Job.Name: up.Build.ID},
		},
	}
	return joinPB.Merge(current).Merge(up.Build.ParentBuilds)
}

// Require registers the job as a member without a known build.
func (pb ParentBuilds) Require(pipelineID uint64, jobName string) {
	e := pb[pipelineID]
	if e.Jobs == nil {
		e.Jobs = make(map[string]uint64)
	}
	if _, exists := e.Jobs[jobName]; !exists {
		e.Jobs[jobName] = 0
	}
	pb[pipelineID] = e
}

// Set records the build of the job, keeping a newer build that is already recorded.
func (pb ParentBuilds) Set(pipelineID uint64, jobName string, eventID, buildID uint64) {
	pb.Require(pipelineID, jobName)
	e := pb[pipelineID]
	if buildID > e.Jobs[jobName] {
		e.Jobs[jobName] = buildID
	}
	if eventID > e.EventID {
		e.EventID = eventID
	}
	pb[pipelineID] = e
}

// BuildID returns the recorded build of the job, 0 if unknown.
func (pb ParentBuilds) BuildID(pipelineID uint64, jobName string) uint64 {
	return pb[pipelineID].Jobs[jobName]
}

// Missing returns the job names of the pipeline without a recorded build.
func (pb ParentBuilds) Missing(pipelineID uint64) []string {
	var res []string
	for name, id := range pb[pipelineID].Jobs {
		if id == 0 {
			res = append(res, name)
		}
	}
	return res
}

// Clone returns a deep copy.
func (pb ParentBuilds) Clone() ParentBuilds {
	res := make(ParentBuilds, len(pb))
	for pid, e := range pb {
		jobs := make(map[string]uint64, len(e.Jobs))
		for name, id := range e.Jobs {
			jobs[name] = id
		}
		res[pid] = ParentBuildsEntry{EventID: e.EventID, Jobs: jobs}
	}
	return res
}

// Merge returns a new lineage holding every contributor of both operands.
// For the same job the newer (higher) build id wins, so the operation is commutative and idempotent.
func (pb ParentBuilds) Merge(other ParentBuilds) ParentBuilds {
	res := pb.Clone()
	for pid, e := range other {
		if len(e.Jobs) == 0 {
			cur := res[pid]
			if cur.Jobs == nil {
				cur.Jobs = make(map[string]uint64)
			}
			if e.EventID > cur.EventID {
				cur.EventID = e.EventID
			}
			res[pid] = cur
			continue
		}
		for name, id := range e.Jobs {
			res.Set(pid, name, e.EventID, id)
		}
	}
	return res
}

// ParentBuildIDs returns the de-duplicated parent build ids for a new build: the current build first,
// then every join member with a known build in join list order.
func (pb ParentBuilds) ParentBuildIDs(join []string, pipelineID, currentBuildID uint64) []uint64 {
	res := []uint64{currentBuildID}
	seen := map[uint64]bool{currentBuildID: true}
	for _, name := range join {
		pid, jobName := ParseJobRef(name, pipelineID)
		id := pb.BuildID(pid, jobName)
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		res = append(res, id)
	}
	return res
}

// Value implements driver.Valuer so the lineage is stored as JSON.
func (pb ParentBuilds) Value() (driver.Value, error) {
	if pb == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(pb)
}

// Scan implements sql.Scanner.
func (pb *ParentBuilds) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*pb = ParentBuilds{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("parent builds: unsupported source type %T", src)
	}
	res := ParentBuilds{}
	if err := json.Unmarshal(data, &res); err != nil {
		return err
	}
	*pb = res
	return nil
}
