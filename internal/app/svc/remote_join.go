package svc

import (
	"context"
	"github.com/beldeveloper/go-errors-context"
	"github.com/yakanechi/screwdriver/internal/app"
	"log"
	"sort"
)

// NewRemoteJoin creates a new instance of the cross-pipeline join.
func NewRemoteJoin(
	buildRepo app.BuildRepo,
	eventRepo app.EventRepo,
	lineage Lineage,
	join Join,
	materializer Materializer,
) RemoteJoin {
	return RemoteJoin{
		buildRepo:    buildRepo,
		eventRepo:    eventRepo,
		lineage:      lineage,
		join:         join,
		materializer: materializer,
	}
}

// RemoteJoin feeds the upstream build into the jobs of an already existing event of another pipeline.
type RemoteJoin struct {
	buildRepo    app.BuildRepo
	eventRepo    app.EventRepo
	lineage      Lineage
	join         Join
	materializer Materializer
}

// Run processes the next jobs of the external pipeline against the known external event.
// Nothing happens without an external event. When one of the jobs already ran under another lineage,
// a new event of the same group is created and returned, and only the join-gated jobs are processed in it.
// A failed upstream build never restarts the external pipeline.
func (t RemoteJoin) Run(
	ctx context.Context,
	up app.Upstream,
	externalPipelineID uint64,
	nextJobs map[string]app.Job,
	externalEvent *app.Event,
) ([]app.Build, *app.Event, error) {
	if externalEvent == nil {
		return nil, nil, nil
	}
	pool, err := t.buildRepo.FindLatestByGroupEvent(ctx, externalEvent.GroupID())
	if err != nil {
		return nil, nil, errors.WrapContext(err, errors.Context{
			Path:   "svc.RemoteJoin.Run.FindLatestByGroupEvent",
			Params: errors.Params{"event": externalEvent.ID},
		})
	}
	names := make([]string, 0, len(nextJobs))
	for name := range nextJobs {
		names = append(names, name)
	}
	sort.Strings(names)

	var restart []app.Build
	for _, name := range names {
		if b := findByJob(pool, nextJobs[name].ID); b != nil && isStale(*b, up) {
			restart = append(restart, *b)
		}
	}

	parallel, err := t.parallelBuilds(ctx, *externalEvent)
	if err != nil {
		return nil, nil, errors.WrapContext(err, errors.Context{
			Path:   "svc.RemoteJoin.Run.parallelBuilds",
			Params: errors.Params{"event": externalEvent.ID},
		})
	}
	pool = append(pool, parallel...)

	event := *externalEvent
	var restarted *app.Event
	if len(restart) > 0 && !up.Build.Status.IsSuccess() {
		log.Printf("The build #%d is restarted, failed %s leaves pipeline #%d alone\n",
			restart[0].ID, up.TriggerName(), externalPipelineID)
		return nil, nil, nil
	}
	if len(restart) > 0 {
		log.Printf("The build #%d is restarted, %s creates a new event in pipeline #%d\n",
			restart[0].ID, up.TriggerName(), externalPipelineID)
		event, err = t.materializer.CreateEvent(ctx, FormCreateEvent{
			Upstream:           up,
			ExternalPipelineID: externalPipelineID,
			ParentBuilds:       restart[0].ParentBuilds,
			ParentEventID:      up.Event.ID,
			GroupEventID:       externalEvent.ID,
		})
		if err != nil {
			return nil, nil, errors.WrapContext(err, errors.Context{
				Path:   "svc.RemoteJoin.Run.CreateEvent",
				Params: errors.Params{"pipeline": externalPipelineID, "group": externalEvent.ID},
			})
		}
		restarted = &event
		joined := names[:0]
		for _, name := range names {
			if nextJobs[name].IsJoin() {
				joined = append(joined, name)
			}
		}
		names = joined
	}

	var res []app.Build
	for _, name := range names {
		var existing *app.Build
		if len(restart) == 0 {
			existing = findByJob(pool, nextJobs[name].ID)
		}
		b, err := t.process(ctx, up, externalPipelineID, nextJobs[name], event, existing, pool)
		if err != nil {
			return res, restarted, errors.WrapContext(err, errors.Context{
				Path:   "svc.RemoteJoin.Run.process",
				Params: errors.Params{"event": event.ID, "job": name},
			})
		}
		if b != nil {
			res = append(res, *b)
		}
	}
	return res, restarted, nil
}

// RunEvent processes the next jobs in the event against the event's own builds only.
// It serves the jobs left out of a restarted event; the builds of the previous run stay untouched.
func (t RemoteJoin) RunEvent(
	ctx context.Context,
	up app.Upstream,
	externalPipelineID uint64,
	nextJobs map[string]app.Job,
	event app.Event,
) ([]app.Build, error) {
	pool, err := t.buildRepo.FindByEvent(ctx, event.ID)
	if err != nil {
		return nil, errors.WrapContext(err, errors.Context{
			Path:   "svc.RemoteJoin.RunEvent.FindByEvent",
			Params: errors.Params{"event": event.ID},
		})
	}
	names := make([]string, 0, len(nextJobs))
	for name := range nextJobs {
		names = append(names, name)
	}
	sort.Strings(names)
	var res []app.Build
	for _, name := range names {
		existing := findByJob(pool, nextJobs[name].ID)
		b, err := t.process(ctx, up, externalPipelineID, nextJobs[name], event, existing, pool)
		if err != nil {
			return res, errors.WrapContext(err, errors.Context{
				Path:   "svc.RemoteJoin.RunEvent.process",
				Params: errors.Params{"event": event.ID, "job": name},
			})
		}
		if b != nil {
			res = append(res, *b)
		}
	}
	return res, nil
}

func (t RemoteJoin) process(
	ctx context.Context,
	up app.Upstream,
	externalPipelineID uint64,
	job app.Job,
	event app.Event,
	existing *app.Build,
	pool []app.Build,
) (*app.Build, error) {
	pb := t.lineage.Seed(up, job.Join, externalPipelineID).Merge(event.ParentBuilds)
	err := t.lineage.Fill(ctx, pb, pool)
	if err != nil {
		return nil, errors.WrapContext(err, errors.Context{
			Path:   "svc.RemoteJoin.process.Fill",
			Params: errors.Params{"job": job.ID},
		})
	}
	var next app.Build
	if existing != nil {
		next, err = t.buildRepo.MergeParentBuilds(ctx, existing.ID, pb, up.Build.ID)
		if err != nil {
			return nil, errors.WrapContext(err, errors.Context{
				Path:   "svc.RemoteJoin.process.MergeParentBuilds",
				Params: errors.Params{"build": existing.ID},
			})
		}
	} else {
		created, err := t.materializer.CreateBuild(ctx, FormCreateBuild{
			PipelineID:     event.PipelineID,
			JobID:          job.ID,
			Event:          event,
			ParentBuilds:   pb,
			ParentBuildIDs: pb.ParentBuildIDs(job.Join, externalPipelineID, up.Build.ID),
			Username:       up.Build.Username,
			ScmContext:     up.Pipeline.ScmContext,
		})
		if err != nil {
			return nil, errors.WrapContext(err, errors.Context{
				Path:   "svc.RemoteJoin.process.CreateBuild",
				Params: errors.Params{"event": event.ID, "job": job.ID},
			})
		}
		if created == nil {
			return nil, nil
		}
		next = *created
	}

	if !job.JoinsOn(up.TriggerName()) {
		if !next.Status.IsPending() {
			return &next, nil
		}
		next, err = t.materializer.Start(ctx, next)
		if err != nil {
			return nil, errors.WrapContext(err, errors.Context{
				Path:   "svc.RemoteJoin.process.Start",
				Params: errors.Params{"build": next.ID},
			})
		}
		return &next, nil
	}
	st, err := t.join.Evaluate(ctx, next, job.Join, externalPipelineID)
	if err != nil {
		return nil, errors.WrapContext(err, errors.Context{
			Path:   "svc.RemoteJoin.process.Evaluate",
			Params: errors.Params{"build": next.ID},
		})
	}
	next, err = t.join.Apply(ctx, next, st)
	if err != nil {
		return nil, errors.WrapContext(err, errors.Context{
			Path:   "svc.RemoteJoin.process.Apply",
			Params: errors.Params{"build": next.ID},
		})
	}
	return &next, nil
}

// parallelBuilds returns the builds of events in other pipelines that were fanned out from the event.
func (t RemoteJoin) parallelBuilds(ctx context.Context, e app.Event) ([]app.Build, error) {
	children, err := t.eventRepo.FindByParent(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	var res []app.Build
	for _, child := range children {
		if child.PipelineID == e.PipelineID {
			continue
		}
		builds, err := t.buildRepo.FindByEvent(ctx, child.ID)
		if err != nil {
			return nil, err
		}
		res = append(res, builds...)
	}
	return res, nil
}

// isStale reports whether the build ran under a lineage the upstream build doesn't belong to.
func isStale(b app.Build, up app.Upstream) bool {
	return !b.Status.IsPending() && !b.HasParent(up.Build.ID) && b.EventID != up.Event.ParentEventID
}

func findByJob(builds []app.Build, jobID uint64) *app.Build {
	var res *app.Build
	for i := range builds {
		if builds[i].JobID == jobID && (res == nil || builds[i].ID > res.ID) {
			res = &builds[i]
		}
	}
	return res
}
