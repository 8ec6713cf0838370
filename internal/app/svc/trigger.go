package svc

import (
	"context"
	"github.com/beldeveloper/go-errors-context"
	"github.com/yakanechi/screwdriver/internal/app"
	"github.com/yakanechi/screwdriver/internal/app/errtype"
	"log"
	"sort"
)

// NewTrigger creates a new instance of the trigger service.
func NewTrigger(
	pipelineRepo app.PipelineRepo,
	jobRepo app.JobRepo,
	buildRepo app.BuildRepo,
	eventRepo app.EventRepo,
	or OrTrigger,
	and AndTrigger,
	remoteTrigger RemoteTrigger,
	remoteJoin RemoteJoin,
) app.TriggerSvc {
	return Trigger{
		pipelineRepo:  pipelineRepo,
		jobRepo:       jobRepo,
		buildRepo:     buildRepo,
		eventRepo:     eventRepo,
		or:            or,
		and:           and,
		remoteTrigger: remoteTrigger,
		remoteJoin:    remoteJoin,
	}
}

// Trigger is a service that fires the outgoing triggers of finished builds.
type Trigger struct {
	pipelineRepo  app.PipelineRepo
	jobRepo       app.JobRepo
	buildRepo     app.BuildRepo
	eventRepo     app.EventRepo
	or            OrTrigger
	and           AndTrigger
	remoteTrigger RemoteTrigger
	remoteJoin    RemoteJoin
}

// Build returns the build by id.
func (s Trigger) Build(ctx context.Context, id uint64) (app.Build, error) {
	b, err := s.buildRepo.FindByID(ctx, id)
	return b, errors.WrapContext(err, errors.Context{
		Path:   "svc.Trigger.Build",
		Params: errors.Params{"build": id},
	})
}

// Run processes every trigger of the finished build's job once.
// A successful build fires all of them; a failed build only reaches the join-gated jobs,
// so the joins waiting for it fail instead of waiting forever.
// The build is claimed before its triggers are processed, a build claimed earlier is left alone.
func (s Trigger) Run(ctx context.Context, buildID uint64) error {
	b, err := s.buildRepo.FindByID(ctx, buildID)
	if err != nil {
		return errors.WrapContext(err, errors.Context{
			Path:   "svc.Trigger.Run.FindByID",
			Params: errors.Params{"build": buildID},
		})
	}
	if !app.IsTerminal(b.Status) {
		return errors.WrapContext(errtype.ErrBadInput, errors.Context{
			Path:   "svc.Trigger.Run",
			Params: errors.Params{"build": buildID, "status": b.Status},
		})
	}
	claimed, err := s.buildRepo.ClaimTriggers(ctx, buildID)
	if err != nil {
		return errors.WrapContext(err, errors.Context{
			Path:   "svc.Trigger.Run.ClaimTriggers",
			Params: errors.Params{"build": buildID},
		})
	}
	if !claimed {
		log.Printf("The triggers of build #%d are already processed\n", buildID)
		return nil
	}
	up, err := s.upstream(ctx, b)
	if err != nil {
		return errors.WrapContext(err, errors.Context{
			Path:   "svc.Trigger.Run.upstream",
			Params: errors.Params{"build": buildID},
		})
	}
	success := up.Build.Status.IsSuccess()
	remote := make(map[uint64][]string)
	for _, name := range up.Job.Triggers {
		if app.IsExternalRef(name) {
			pid, jobName := app.ParseJobRef(name, up.Pipeline.ID)
			remote[pid] = append(remote[pid], jobName)
			continue
		}
		err = s.local(ctx, up, name, success)
		if err != nil {
			return errors.WrapContext(err, errors.Context{
				Path:   "svc.Trigger.Run.local",
				Params: errors.Params{"build": buildID, "job": name},
			})
		}
	}
	pids := make([]uint64, 0, len(remote))
	for pid := range remote {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	for _, pid := range pids {
		err = s.external(ctx, up, pid, remote[pid], success)
		if err != nil {
			return errors.WrapContext(err, errors.Context{
				Path:   "svc.Trigger.Run.external",
				Params: errors.Params{"build": buildID, "pipeline": pid},
			})
		}
	}
	return nil
}

// Job fires the triggers of one finished build that was not processed yet.
func (s Trigger) Job(ctx context.Context) error {
	b, err := s.buildRepo.FindUntriggered(ctx)
	if errors.Is(err, errtype.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.WrapContext(err, errors.Context{Path: "svc.Trigger.Job.FindUntriggered"})
	}
	// a build that fails here stays claimed, so it isn't picked up on every tick
	err = s.Run(ctx, b.ID)
	if err != nil {
		return errors.WrapContext(err, errors.Context{
			Path:   "svc.Trigger.Job.Run",
			Params: errors.Params{"build": b.ID},
		})
	}
	log.Printf("The triggers of build #%d are processed\n", b.ID)
	return nil
}

func (s Trigger) upstream(ctx context.Context, b app.Build) (app.Upstream, error) {
	up := app.Upstream{Build: b}
	var err error
	up.Job, err = s.jobRepo.FindByID(ctx, up.Build.JobID)
	if err != nil {
		return up, err
	}
	up.Pipeline, err = s.pipelineRepo.FindByID(ctx, up.Job.PipelineID)
	if err != nil {
		return up, err
	}
	up.Event, err = s.eventRepo.FindByID(ctx, up.Build.EventID)
	return up, err
}

func (s Trigger) local(ctx context.Context, up app.Upstream, name string, success bool) error {
	next, err := s.jobRepo.FindByName(ctx, up.Pipeline.ID, name)
	if errors.Is(err, errtype.ErrNotFound) {
		log.Printf("The job %s triggered by %s doesn't exist\n", name, up.TriggerName())
		return nil
	}
	if err != nil {
		return err
	}
	if next.IsJoin() {
		_, err = s.and.Run(ctx, up, next)
		return err
	}
	if !success {
		return nil
	}
	_, err = s.or.Run(ctx, up, next.Name, app.SeedParentBuilds(up, nil, up.Pipeline.ID))
	return err
}

func (s Trigger) external(ctx context.Context, up app.Upstream, pid uint64, names []string, success bool) error {
	triggerName := up.TriggerName()
	nextJobs := make(map[string]app.Job, len(names))
	var joined bool
	for _, name := range names {
		job, err := s.jobRepo.FindByName(ctx, pid, name)
		if errors.Is(err, errtype.ErrNotFound) {
			log.Printf("The job sd@%d:%s triggered by %s doesn't exist\n", pid, name, triggerName)
			continue
		}
		if err != nil {
			return err
		}
		if job.JoinsOn(triggerName) {
			joined = true
		} else if !success {
			continue
		}
		nextJobs[name] = job
	}
	if len(nextJobs) == 0 {
		return nil
	}
	var externalEvent *app.Event
	if joined {
		var err error
		externalEvent, err = s.externalEvent(ctx, up.Event, pid)
		if err != nil {
			return err
		}
	}
	if externalEvent == nil {
		if !success {
			return nil
		}
		e, err := s.remoteTrigger.Run(ctx, up, pid)
		if err != nil {
			return err
		}
		externalEvent = &e
	}
	// the jobs named by the trigger are materialized in the event right away
	_, restarted, err := s.remoteJoin.Run(ctx, up, pid, nextJobs, externalEvent)
	if err != nil || restarted == nil {
		return err
	}
	cascade := make(map[string]app.Job)
	for name, job := range nextJobs {
		if !job.IsJoin() {
			cascade[name] = job
		}
	}
	if len(cascade) == 0 {
		return nil
	}
	_, err = s.remoteJoin.RunEvent(ctx, up, pid, cascade, *restarted)
	return err
}

// externalEvent finds the event of the pipeline that belongs to the same trigger family as the current event:
// the parent event itself, or the newest event fanned out from the current event or its group.
func (s Trigger) externalEvent(ctx context.Context, current app.Event, pid uint64) (*app.Event, error) {
	if current.ParentEventID != 0 {
		parent, err := s.eventRepo.FindByID(ctx, current.ParentEventID)
		if err != nil && !errors.Is(err, errtype.ErrNotFound) {
			return nil, err
		}
		if err == nil && parent.PipelineID == pid {
			return &parent, nil
		}
	}
	parents := []uint64{current.ID}
	if current.GroupID() != current.ID {
		parents = append(parents, current.GroupID())
	}
	var res *app.Event
	for _, id := range parents {
		children, err := s.eventRepo.FindByParent(ctx, id)
		if err != nil {
			return nil, err
		}
		for i := range children {
			if children[i].PipelineID == pid && (res == nil || children[i].ID > res.ID) {
				res = &children[i]
			}
		}
	}
	return res, nil
}
