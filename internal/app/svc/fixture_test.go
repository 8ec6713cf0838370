package svc

import (
	"context"
	"github.com/stretchr/testify/require"
	"github.com/yakanechi/screwdriver/internal/app"
	"github.com/yakanechi/screwdriver/internal/app/memory"
	"sync"
	"testing"
)

type fakeExecutor struct {
	mux     sync.Mutex
	started []uint64
	err     error
}

func (e *fakeExecutor) Start(_ context.Context, b app.Build) error {
	e.mux.Lock()
	defer e.mux.Unlock()
	if e.err != nil {
		return e.err
	}
	e.started = append(e.started, b.ID)
	return nil
}

func (e *fakeExecutor) Started() []uint64 {
	e.mux.Lock()
	defer e.mux.Unlock()
	return append([]uint64(nil), e.started...)
}

type env struct {
	ctx           context.Context
	db            *memory.DB
	executor      *fakeExecutor
	pipelines     app.PipelineRepo
	jobs          app.JobRepo
	builds        app.BuildRepo
	events        app.EventRepo
	materializer  Materializer
	lineage       Lineage
	join          Join
	or            OrTrigger
	and           AndTrigger
	remoteTrigger RemoteTrigger
	remoteJoin    RemoteJoin
	trigger       app.TriggerSvc
}

func newEnv() *env {
	e := &env{ctx: context.Background(), db: memory.NewDB(), executor: &fakeExecutor{}}
	e.pipelines = memory.NewPipeline(e.db)
	e.jobs = memory.NewJob(e.db)
	e.builds = memory.NewBuild(e.db)
	e.events = memory.NewEvent(e.db)
	e.materializer = NewMaterializer(e.executor, e.pipelines, e.jobs, e.builds, e.events)
	e.lineage = NewLineage(e.jobs)
	e.join = NewJoin(e.builds, e.materializer)
	e.or = NewOrTrigger(e.jobs, e.builds, e.materializer)
	e.and = NewAndTrigger(e.builds, e.lineage, e.join, e.materializer)
	e.remoteTrigger = NewRemoteTrigger(e.materializer)
	e.remoteJoin = NewRemoteJoin(e.builds, e.events, e.lineage, e.join, e.materializer)
	e.trigger = NewTrigger(e.pipelines, e.jobs, e.builds, e.events, e.or, e.and, e.remoteTrigger, e.remoteJoin)
	return e
}

func (e *env) pipeline(name string) app.Pipeline {
	return e.db.AddPipeline(app.Pipeline{Name: name, ScmContext: "github:github.com"})
}

func (e *env) job(p app.Pipeline, name string, join, triggers []string) app.Job {
	return e.db.AddJob(app.Job{PipelineID: p.ID, Name: name, Join: join, Triggers: triggers})
}

func (e *env) event(t *testing.T, ev app.Event) app.Event {
	t.Helper()
	if ev.SHA == "" {
		ev.SHA = "deadbeef"
	}
	res, err := e.events.Add(e.ctx, ev)
	require.NoError(t, err)
	return res
}

// run stores a build of the job in the event with the given status.
func (e *env) run(t *testing.T, j app.Job, ev app.Event, status app.Status) app.Build {
	t.Helper()
	b, err := e.builds.Add(e.ctx, app.Build{
		JobID:    j.ID,
		EventID:  ev.ID,
		Status:   status,
		SHA:      ev.SHA,
		Username: "alice",
	})
	require.NoError(t, err)
	return b
}

func (e *env) finish(t *testing.T, b app.Build, status app.Status) app.Build {
	t.Helper()
	stored := e.stored(t, b.ID)
	stored.Status = status
	e.db.PutBuild(stored)
	return stored
}

func (e *env) stored(t *testing.T, id uint64) app.Build {
	t.Helper()
	b, err := e.builds.FindByID(e.ctx, id)
	require.NoError(t, err)
	return b
}

func (e *env) upstream(t *testing.T, b app.Build) app.Upstream {
	t.Helper()
	up := app.Upstream{Build: e.stored(t, b.ID)}
	var err error
	up.Job, err = e.jobs.FindByID(e.ctx, up.Build.JobID)
	require.NoError(t, err)
	up.Pipeline, err = e.pipelines.FindByID(e.ctx, up.Job.PipelineID)
	require.NoError(t, err)
	up.Event, err = e.events.FindByID(e.ctx, up.Build.EventID)
	require.NoError(t, err)
	return up
}

func (e *env) buildOf(t *testing.T, ev app.Event, j app.Job) app.Build {
	t.Helper()
	b, err := e.builds.FindByEventJob(e.ctx, ev.ID, j.ID)
	require.NoError(t, err)
	return b
}

func (e *env) childEvents(t *testing.T, ev app.Event) []app.Event {
	t.Helper()
	res, err := e.events.FindByParent(e.ctx, ev.ID)
	require.NoError(t, err)
	return res
}
