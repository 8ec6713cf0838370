package svc

import (
	"context"
	"github.com/beldeveloper/go-errors-context"
	"github.com/yakanechi/screwdriver/internal/app"
	"github.com/yakanechi/screwdriver/internal/app/errtype"
)

// NewAndTrigger creates a new instance of the same-pipeline join.
func NewAndTrigger(buildRepo app.BuildRepo, lineage Lineage, join Join, materializer Materializer) AndTrigger {
	return AndTrigger{
		buildRepo:    buildRepo,
		lineage:      lineage,
		join:         join,
		materializer: materializer,
	}
}

// AndTrigger records the upstream build in the join of the next job within the same event
// and starts the next build once every member finished.
type AndTrigger struct {
	buildRepo    app.BuildRepo
	lineage      Lineage
	join         Join
	materializer Materializer
}

// Run returns the downstream build, nil if the job is disabled.
func (t AndTrigger) Run(ctx context.Context, up app.Upstream, nextJob app.Job) (*app.Build, error) {
	candidates, err := t.buildRepo.FindByEvent(ctx, up.Event.ID)
	if err != nil {
		return nil, errors.WrapContext(err, errors.Context{
			Path:   "svc.AndTrigger.Run.FindByEvent",
			Params: errors.Params{"event": up.Event.ID},
		})
	}
	var existing *app.Build
	for i := range candidates {
		if candidates[i].JobID == nextJob.ID {
			existing = &candidates[i]
			break
		}
	}
	if existing != nil && !existing.Status.IsPending() {
		return existing, nil
	}
	pb := t.lineage.Seed(up, nextJob.Join, up.Pipeline.ID)
	err = t.lineage.Fill(ctx, pb, candidates)
	if err != nil {
		return nil, errors.WrapContext(err, errors.Context{
			Path:   "svc.AndTrigger.Run.Fill",
			Params: errors.Params{"event": up.Event.ID},
		})
	}
	var next app.Build
	if existing != nil {
		next, err = t.buildRepo.MergeParentBuilds(ctx, existing.ID, pb, up.Build.ID)
		if err != nil {
			return nil, errors.WrapContext(err, errors.Context{
				Path:   "svc.AndTrigger.Run.MergeParentBuilds",
				Params: errors.Params{"build": existing.ID},
			})
		}
	} else {
		created, err := t.materializer.CreateBuild(ctx, FormCreateBuild{
			PipelineID:     up.Pipeline.ID,
			JobID:          nextJob.ID,
			Event:          up.Event,
			ParentBuilds:   pb,
			ParentBuildIDs: pb.ParentBuildIDs(nextJob.Join, up.Pipeline.ID, up.Build.ID),
			Username:       up.Build.Username,
			ScmContext:     up.Pipeline.ScmContext,
		})
		if err != nil {
			if errors.Is(err, errtype.ErrConflict) {
				// a concurrent trigger created the build first
				return t.retry(ctx, up, nextJob)
			}
			return nil, errors.WrapContext(err, errors.Context{
				Path:   "svc.AndTrigger.Run.CreateBuild",
				Params: errors.Params{"event": up.Event.ID, "job": nextJob.ID},
			})
		}
		if created == nil {
			return nil, nil
		}
		next = *created
	}
	return t.decide(ctx, up, nextJob, next)
}

func (t AndTrigger) retry(ctx context.Context, up app.Upstream, nextJob app.Job) (*app.Build, error) {
	existing, err := t.buildRepo.FindByEventJob(ctx, up.Event.ID, nextJob.ID)
	if err != nil {
		return nil, errors.WrapContext(err, errors.Context{
			Path:   "svc.AndTrigger.retry.FindByEventJob",
			Params: errors.Params{"event": up.Event.ID, "job": nextJob.ID},
		})
	}
	if !existing.Status.IsPending() {
		return &existing, nil
	}
	pb := t.lineage.Seed(up, nextJob.Join, up.Pipeline.ID)
	next, err := t.buildRepo.MergeParentBuilds(ctx, existing.ID, pb, up.Build.ID)
	if err != nil {
		return nil, errors.WrapContext(err, errors.Context{
			Path:   "svc.AndTrigger.retry.MergeParentBuilds",
			Params: errors.Params{"build": existing.ID},
		})
	}
	return t.decide(ctx, up, nextJob, next)
}

func (t AndTrigger) decide(ctx context.Context, up app.Upstream, nextJob app.Job, next app.Build) (*app.Build, error) {
	st, err := t.join.Evaluate(ctx, next, nextJob.Join, up.Pipeline.ID)
	if err != nil {
		return nil, errors.WrapContext(err, errors.Context{
			Path:   "svc.AndTrigger.decide.Evaluate",
			Params: errors.Params{"build": next.ID},
		})
	}
	next, err = t.join.Apply(ctx, next, st)
	if err != nil {
		return nil, errors.WrapContext(err, errors.Context{
			Path:   "svc.AndTrigger.decide.Apply",
			Params: errors.Params{"build": next.ID},
		})
	}
	return &next, nil
}
