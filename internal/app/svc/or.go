package svc

import (
	"context"
	"github.com/beldeveloper/go-errors-context"
	"github.com/yakanechi/screwdriver/internal/app"
	"github.com/yakanechi/screwdriver/internal/app/errtype"
)

// NewOrTrigger creates a new instance of the same-pipeline cascade.
func NewOrTrigger(jobRepo app.JobRepo, buildRepo app.BuildRepo, materializer Materializer) OrTrigger {
	return OrTrigger{
		jobRepo:      jobRepo,
		buildRepo:    buildRepo,
		materializer: materializer,
	}
}

// OrTrigger starts the next job of the same event as soon as one predecessor finished.
type OrTrigger struct {
	jobRepo      app.JobRepo
	buildRepo    app.BuildRepo
	materializer Materializer
}

// Run creates and starts the build of the next job, or starts the existing one if it is still CREATED.
// A build already past CREATED is returned unchanged. The result is nil when the job is disabled.
func (t OrTrigger) Run(ctx context.Context, up app.Upstream, nextJobName string, pb app.ParentBuilds) (*app.Build, error) {
	nextJob, err := t.jobRepo.FindByName(ctx, up.Pipeline.ID, nextJobName)
	if err != nil {
		return nil, errors.WrapContext(err, errors.Context{
			Path:   "svc.OrTrigger.Run.FindByName",
			Params: errors.Params{"pipeline": up.Pipeline.ID, "job": nextJobName},
		})
	}
	existing, err := t.buildRepo.FindByEventJob(ctx, up.Event.ID, nextJob.ID)
	if err == nil {
		return t.startExisting(ctx, existing)
	}
	if !errors.Is(err, errtype.ErrNotFound) {
		return nil, errors.WrapContext(err, errors.Context{
			Path:   "svc.OrTrigger.Run.FindByEventJob",
			Params: errors.Params{"event": up.Event.ID, "job": nextJob.ID},
		})
	}
	b, err := t.materializer.CreateBuild(ctx, FormCreateBuild{
		PipelineID:     up.Pipeline.ID,
		JobID:          nextJob.ID,
		Event:          up.Event,
		ParentBuilds:   pb,
		ParentBuildIDs: []uint64{up.Build.ID},
		Username:       up.Build.Username,
		ScmContext:     up.Pipeline.ScmContext,
		Start:          true,
	})
	if errors.Is(err, errtype.ErrConflict) {
		existing, err = t.buildRepo.FindByEventJob(ctx, up.Event.ID, nextJob.ID)
		if err != nil {
			return nil, errors.WrapContext(err, errors.Context{
				Path:   "svc.OrTrigger.Run.refetch",
				Params: errors.Params{"event": up.Event.ID, "job": nextJob.ID},
			})
		}
		return t.startExisting(ctx, existing)
	}
	return b, errors.WrapContext(err, errors.Context{
		Path:   "svc.OrTrigger.Run.CreateBuild",
		Params: errors.Params{"event": up.Event.ID, "job": nextJob.ID},
	})
}

func (t OrTrigger) startExisting(ctx context.Context, b app.Build) (*app.Build, error) {
	if !b.Status.IsPending() {
		return &b, nil
	}
	b, err := t.materializer.Start(ctx, b)
	if err != nil {
		return nil, errors.WrapContext(err, errors.Context{
			Path:   "svc.OrTrigger.startExisting",
			Params: errors.Params{"build": b.ID},
		})
	}
	return &b, nil
}
