package svc

import (
	"context"
	"github.com/beldeveloper/go-errors-context"
	"github.com/yakanechi/screwdriver/internal/app"
	"github.com/yakanechi/screwdriver/internal/app/errtype"
)

// NewLineage creates a new instance of the lineage tracker.
func NewLineage(jobRepo app.JobRepo) Lineage {
	return Lineage{jobRepo: jobRepo}
}

// Lineage completes parent builds maps from builds that are already materialized.
type Lineage struct {
	jobRepo app.JobRepo
}

// Seed initializes the lineage of a build of the job in the target pipeline.
func (s Lineage) Seed(up app.Upstream, join []string, targetPipelineID uint64) app.ParentBuilds {
	return app.SeedParentBuilds(up, join, targetPipelineID)
}

// Fill records the candidate build of every member that has no known build yet.
// Known members are never touched; members whose job can't be resolved stay unknown.
func (s Lineage) Fill(ctx context.Context, pb app.ParentBuilds, candidates []app.Build) error {
	byJob := make(map[uint64]app.Build, len(candidates))
	for _, b := range candidates {
		if cur, exists := byJob[b.JobID]; !exists || b.ID > cur.ID {
			byJob[b.JobID] = b
		}
	}
	for pid := range pb {
		for _, name := range pb.Missing(pid) {
			job, err := s.jobRepo.FindByName(ctx, pid, name)
			if err != nil {
				if errors.Is(err, errtype.ErrNotFound) {
					continue
				}
				return errors.WrapContext(err, errors.Context{
					Path:   "svc.Lineage.Fill.FindByName",
					Params: errors.Params{"pipeline": pid, "job": name},
				})
			}
			b, exists := byJob[job.ID]
			if !exists {
				continue
			}
			pb.Set(pid, name, b.EventID, b.ID)
		}
	}
	return nil
}
