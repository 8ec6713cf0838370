package svc

import (
	"context"
	"github.com/beldeveloper/go-errors-context"
	"github.com/yakanechi/screwdriver/internal/app"
	"github.com/yakanechi/screwdriver/internal/app/errtype"
	"log"
)

// FormCreateBuild contains the data for materializing a build within an event.
// The job is resolved by JobID when it is set, by PipelineID and JobName otherwise.
type FormCreateBuild struct {
	PipelineID     uint64
	JobName        string
	JobID          uint64
	Event          app.Event
	ParentBuilds   app.ParentBuilds
	ParentBuildIDs []uint64
	Username       string
	ScmContext     string
	Start          bool
}

// FormCreateEvent contains the data for materializing an event in another pipeline.
type FormCreateEvent struct {
	Upstream           app.Upstream
	ExternalPipelineID uint64
	ParentBuilds       app.ParentBuilds
	ParentEventID      uint64
	GroupEventID       uint64
}

// NewMaterializer creates a new instance of the build materializer.
func NewMaterializer(
	executor app.ExecutorSvc,
	pipelineRepo app.PipelineRepo,
	jobRepo app.JobRepo,
	buildRepo app.BuildRepo,
	eventRepo app.EventRepo,
) Materializer {
	return Materializer{
		executor:     executor,
		pipelineRepo: pipelineRepo,
		jobRepo:      jobRepo,
		buildRepo:    buildRepo,
		eventRepo:    eventRepo,
	}
}

// Materializer creates builds and events and hands runnable builds over to the executor.
type Materializer struct {
	executor     app.ExecutorSvc
	pipelineRepo app.PipelineRepo
	jobRepo      app.JobRepo
	buildRepo    app.BuildRepo
	eventRepo    app.EventRepo
}

// CreateBuild creates the build of the job in CREATED status and starts it if requested.
// It returns nil without an error when the job is disabled.
func (s Materializer) CreateBuild(ctx context.Context, f FormCreateBuild) (*app.Build, error) {
	job, err := s.findJob(ctx, f)
	if err != nil {
		return nil, errors.WrapContext(err, errors.Context{
			Path:   "svc.Materializer.CreateBuild.findJob",
			Params: errors.Params{"pipeline": f.PipelineID, "job": f.JobName, "jobId": f.JobID},
		})
	}
	enabled, err := s.isEnabled(ctx, job)
	if err != nil {
		return nil, errors.WrapContext(err, errors.Context{
			Path:   "svc.Materializer.CreateBuild.isEnabled",
			Params: errors.Params{"job": job.ID},
		})
	}
	if !enabled {
		log.Printf("The job #%d (%s) is disabled, build is skipped for event #%d\n", job.ID, job.Name, f.Event.ID)
		return nil, nil
	}
	pb := f.ParentBuilds
	if pb == nil {
		pb = app.ParentBuilds{}
	}
	b, err := s.buildRepo.Add(ctx, app.Build{
		JobID:             job.ID,
		EventID:           f.Event.ID,
		Status:            app.StatusCreated,
		ParentBuildIDs:    f.ParentBuildIDs,
		ParentBuilds:      pb,
		SHA:               f.Event.SHA,
		ConfigPipelineSHA: f.Event.ConfigPipelineSHA,
		BaseBranch:        f.Event.BaseBranch,
		PR:                f.Event.PR,
		Username:          f.Username,
		ScmContext:        f.ScmContext,
	})
	if err != nil {
		return nil, errors.WrapContext(err, errors.Context{
			Path:   "svc.Materializer.CreateBuild.Add",
			Params: errors.Params{"job": job.ID, "event": f.Event.ID},
		})
	}
	log.Printf("The build #%d of job %s is created in event #%d\n", b.ID, job.Name, f.Event.ID)
	if !f.Start {
		return &b, nil
	}
	b, err = s.Start(ctx, b)
	if err != nil {
		return nil, errors.WrapContext(err, errors.Context{
			Path:   "svc.Materializer.CreateBuild.Start",
			Params: errors.Params{"build": b.ID},
		})
	}
	return &b, nil
}

// CreateEvent creates an event in the external pipeline that resumes its workflow from the upstream job.
func (s Materializer) CreateEvent(ctx context.Context, f FormCreateEvent) (app.Event, error) {
	p, err := s.pipelineRepo.FindByID(ctx, f.ExternalPipelineID)
	if err != nil {
		return app.Event{}, errors.WrapContext(err, errors.Context{
			Path:   "svc.Materializer.CreateEvent.FindByID",
			Params: errors.Params{"pipeline": f.ExternalPipelineID},
		})
	}
	up := f.Upstream
	pb := f.ParentBuilds
	if pb == nil {
		pb = app.ParentBuilds{}
	}
	e, err := s.eventRepo.Add(ctx, app.Event{
		PipelineID:     p.ID,
		Type:           app.EventTypePipeline,
		StartFrom:      app.ExternalStartFrom(up.Pipeline.ID, up.Job.Name),
		CauseMessage:   "Triggered by " + up.TriggerName(),
		ParentBuildIDs: []uint64{up.Build.ID},
		ParentBuilds:   pb,
		ParentEventID:  f.ParentEventID,
		GroupEventID:   f.GroupEventID,
	})
	if err != nil {
		return e, errors.WrapContext(err, errors.Context{
			Path:   "svc.Materializer.CreateEvent.Add",
			Params: errors.Params{"pipeline": p.ID, "trigger": up.TriggerName()},
		})
	}
	log.Printf("The event #%d is created in pipeline #%d by %s\n", e.ID, p.ID, up.TriggerName())
	return e, nil
}

// Start moves the build from CREATED to QUEUED and hands it over to the executor.
// Only the caller that wins the transition dispatches the build.
func (s Materializer) Start(ctx context.Context, b app.Build) (app.Build, error) {
	prev := b.Status
	b.Status = app.StatusQueued
	changed, err := s.buildRepo.UpdateStatus(ctx, b, app.StatusCreated)
	if err != nil {
		return b, errors.WrapContext(err, errors.Context{
			Path:   "svc.Materializer.Start.UpdateStatus",
			Params: errors.Params{"build": b.ID},
		})
	}
	if !changed {
		log.Printf("The build #%d is already started by another trigger\n", b.ID)
		stored, err := s.buildRepo.FindByID(ctx, b.ID)
		if err != nil {
			b.Status = prev
			return b, errors.WrapContext(err, errors.Context{
				Path:   "svc.Materializer.Start.FindByID",
				Params: errors.Params{"build": b.ID},
			})
		}
		return stored, nil
	}
	err = s.executor.Start(ctx, b)
	if err != nil {
		return b, errors.WrapContext(err, errors.Context{
			Path:   "svc.Materializer.Start.executor",
			Params: errors.Params{"build": b.ID},
		})
	}
	log.Printf("The build #%d is queued\n", b.ID)
	return b, nil
}

func (s Materializer) findJob(ctx context.Context, f FormCreateBuild) (app.Job, error) {
	if f.JobID != 0 {
		return s.jobRepo.FindByID(ctx, f.JobID)
	}
	return s.jobRepo.FindByName(ctx, f.PipelineID, f.JobName)
}

// isEnabled resolves the state of the original job for PR variants; a PR job without one is enabled.
func (s Materializer) isEnabled(ctx context.Context, job app.Job) (bool, error) {
	if !job.IsPR() {
		return job.State.IsEnabled(), nil
	}
	orig, err := s.jobRepo.FindByName(ctx, job.PipelineID, job.OriginalName())
	if err != nil {
		if errors.Is(err, errtype.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	return orig.State.IsEnabled(), nil
}
