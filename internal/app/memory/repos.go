package memory

import (
	"context"
	"github.com/beldeveloper/go-errors-context"
	"github.com/yakanechi/screwdriver/internal/app"
	"github.com/yakanechi/screwdriver/internal/app/errtype"
	"sort"
)

// NewPipeline creates a new instance of the repository.
func NewPipeline(db *DB) app.PipelineRepo {
	return Pipeline{db: db}
}

// Pipeline implements a repository.
type Pipeline struct {
	db *DB
}

// FindByID returns the pipeline with the specific ID.
func (r Pipeline) FindByID(_ context.Context, id uint64) (app.Pipeline, error) {
	r.db.mux.RLock()
	defer r.db.mux.RUnlock()
	p, exists := r.db.pipelines[id]
	if !exists {
		return p, errors.WrapContext(errtype.ErrNotFound, errors.Context{
			Path:   "memory.Pipeline.FindByID",
			Params: errors.Params{"pipeline": id},
		})
	}
	return p, nil
}

// NewJob creates a new instance of the repository.
func NewJob(db *DB) app.JobRepo {
	return Job{db: db}
}

// Job implements a repository.
type Job struct {
	db *DB
}

// FindByID returns the job with the specific ID.
func (r Job) FindByID(_ context.Context, id uint64) (app.Job, error) {
	r.db.mux.RLock()
	defer r.db.mux.RUnlock()
	j, exists := r.db.jobs[id]
	if !exists {
		return j, errors.WrapContext(errtype.ErrNotFound, errors.Context{
			Path:   "memory.Job.FindByID",
			Params: errors.Params{"job": id},
		})
	}
	return j, nil
}

// FindByName returns the job of the pipeline with the specific name.
func (r Job) FindByName(_ context.Context, pipelineID uint64, name string) (app.Job, error) {
	r.db.mux.RLock()
	defer r.db.mux.RUnlock()
	for _, j := range r.db.jobs {
		if j.PipelineID == pipelineID && j.Name == name {
			return j, nil
		}
	}
	return app.Job{}, errors.WrapContext(errtype.ErrNotFound, errors.Context{
		Path:   "memory.Job.FindByName",
		Params: errors.Params{"pipeline": pipelineID, "name": name},
	})
}

// NewEvent creates a new instance of the repository.
func NewEvent(db *DB) app.EventRepo {
	return Event{db: db}
}

// Event implements a repository.
type Event struct {
	db *DB
}

// FindByID returns the event with the specific ID.
func (r Event) FindByID(_ context.Context, id uint64) (app.Event, error) {
	r.db.mux.RLock()
	defer r.db.mux.RUnlock()
	e, exists := r.db.events[id]
	if !exists {
		return e, errors.WrapContext(errtype.ErrNotFound, errors.Context{
			Path:   "memory.Event.FindByID",
			Params: errors.Params{"event": id},
		})
	}
	return cloneEvent(e), nil
}

// FindByParent returns the events caused by the specific event, oldest first.
func (r Event) FindByParent(_ context.Context, parentEventID uint64) ([]app.Event, error) {
	r.db.mux.RLock()
	defer r.db.mux.RUnlock()
	res := make([]app.Event, 0)
	for _, e := range r.db.events {
		if e.ParentEventID == parentEventID {
			res = append(res, cloneEvent(e))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// Add saves a new event.
func (r Event) Add(_ context.Context, e app.Event) (app.Event, error) {
	r.db.mux.Lock()
	defer r.db.mux.Unlock()
	e.ID = r.db.nextID()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.db.now()
	}
	if e.ParentBuilds == nil {
		e.ParentBuilds = app.ParentBuilds{}
	}
	r.db.events[e.ID] = cloneEvent(e)
	return e, nil
}

// NewBuild creates a new instance of the repository.
func NewBuild(db *DB) app.BuildRepo {
	return Build{db: db}
}

// Build implements a repository.
type Build struct {
	db *DB
}

// FindByID returns the build with the specific ID.
func (r Build) FindByID(_ context.Context, id uint64) (app.Build, error) {
	r.db.mux.RLock()
	defer r.db.mux.RUnlock()
	b, exists := r.db.builds[id]
	if !exists {
		return b, errors.WrapContext(errtype.ErrNotFound, errors.Context{
			Path:   "memory.Build.FindByID",
			Params: errors.Params{"build": id},
		})
	}
	return cloneBuild(b), nil
}

// FindByEventJob returns the build of the job within the event.
func (r Build) FindByEventJob(_ context.Context, eventID, jobID uint64) (app.Build, error) {
	r.db.mux.RLock()
	defer r.db.mux.RUnlock()
	for _, b := range r.db.builds {
		if b.EventID == eventID && b.JobID == jobID {
			return cloneBuild(b), nil
		}
	}
	return app.Build{}, errors.WrapContext(errtype.ErrNotFound, errors.Context{
		Path:   "memory.Build.FindByEventJob",
		Params: errors.Params{"event": eventID, "job": jobID},
	})
}

// FindByEvent returns all builds of the event.
func (r Build) FindByEvent(_ context.Context, eventID uint64) ([]app.Build, error) {
	r.db.mux.RLock()
	defer r.db.mux.RUnlock()
	res := make([]app.Build, 0)
	for _, b := range r.db.builds {
		if b.EventID == eventID {
			res = append(res, cloneBuild(b))
		}
	}
	sortBuilds(res)
	return res, nil
}

// FindLatestByGroupEvent returns the newest build per job among the events of the group.
func (r Build) FindLatestByGroupEvent(_ context.Context, groupEventID uint64) ([]app.Build, error) {
	r.db.mux.RLock()
	defer r.db.mux.RUnlock()
	latest := make(map[uint64]app.Build)
	for _, b := range r.db.builds {
		e := r.db.events[b.EventID]
		if e.ID != groupEventID && e.GroupEventID != groupEventID {
			continue
		}
		if cur, exists := latest[b.JobID]; !exists || b.ID > cur.ID {
			latest[b.JobID] = b
		}
	}
	res := make([]app.Build, 0, len(latest))
	for _, b := range latest {
		res = append(res, cloneBuild(b))
	}
	sortBuilds(res)
	return res, nil
}

// FindUntriggered returns the oldest finished build whose triggers were not processed.
func (r Build) FindUntriggered(_ context.Context) (app.Build, error) {
	r.db.mux.RLock()
	defer r.db.mux.RUnlock()
	var res app.Build
	for _, b := range r.db.builds {
		if b.Triggered || !app.IsTerminal(b.Status) {
			continue
		}
		if res.ID == 0 || b.ID < res.ID {
			res = b
		}
	}
	if res.ID == 0 {
		return res, errors.WrapContext(errtype.ErrNotFound, errors.Context{Path: "memory.Build.FindUntriggered"})
	}
	return cloneBuild(res), nil
}

// Add saves a new build.
func (r Build) Add(_ context.Context, b app.Build) (app.Build, error) {
	r.db.mux.Lock()
	defer r.db.mux.Unlock()
	for _, existing := range r.db.builds {
		if existing.EventID == b.EventID && existing.JobID == b.JobID {
			return b, errors.WrapContext(errtype.ErrConflict, errors.Context{
				Path:   "memory.Build.Add",
				Params: errors.Params{"event": b.EventID, "job": b.JobID},
			})
		}
	}
	b.ID = r.db.nextID()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = r.db.now()
	}
	if b.ParentBuilds == nil {
		b.ParentBuilds = app.ParentBuilds{}
	}
	r.db.builds[b.ID] = cloneBuild(b)
	return b, nil
}

// UpdateStatus modifies the build status if the stored one is in the list.
func (r Build) UpdateStatus(_ context.Context, b app.Build, from ...app.Status) (bool, error) {
	r.db.mux.Lock()
	defer r.db.mux.Unlock()
	stored, exists := r.db.builds[b.ID]
	if !exists {
		return false, errors.WrapContext(errtype.ErrNotFound, errors.Context{
			Path:   "memory.Build.UpdateStatus",
			Params: errors.Params{"build": b.ID},
		})
	}
	if len(from) > 0 && !statusIn(stored.Status, from) {
		return false, nil
	}
	stored.Status = b.Status
	r.db.builds[b.ID] = stored
	return true, nil
}

// MergeParentBuilds merges the lineage into the stored build.
func (r Build) MergeParentBuilds(_ context.Context, id uint64, pb app.ParentBuilds, parentBuildID uint64) (app.Build, error) {
	r.db.mux.Lock()
	defer r.db.mux.Unlock()
	b, exists := r.db.builds[id]
	if !exists {
		return b, errors.WrapContext(errtype.ErrNotFound, errors.Context{
			Path:   "memory.Build.MergeParentBuilds",
			Params: errors.Params{"build": id},
		})
	}
	b.ParentBuilds = b.ParentBuilds.Merge(pb)
	if parentBuildID != 0 && !b.HasParent(parentBuildID) {
		b.ParentBuildIDs = append([]uint64{parentBuildID}, b.ParentBuildIDs...)
	}
	r.db.builds[id] = b
	return cloneBuild(b), nil
}

// ClaimTriggers flags the build as processed by the trigger engine if it was not flagged yet.
func (r Build) ClaimTriggers(_ context.Context, id uint64) (bool, error) {
	r.db.mux.Lock()
	defer r.db.mux.Unlock()
	b, exists := r.db.builds[id]
	if !exists {
		return false, errors.WrapContext(errtype.ErrNotFound, errors.Context{
			Path:   "memory.Build.ClaimTriggers",
			Params: errors.Params{"build": id},
		})
	}
	if b.Triggered {
		return false, nil
	}
	b.Triggered = true
	r.db.builds[id] = b
	return true, nil
}

func statusIn(s app.Status, list []app.Status) bool {
	for _, v := range list {
		if v == s || (v == app.StatusCreated && s == "") {
			return true
		}
	}
	return false
}
