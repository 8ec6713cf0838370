// Package memory implements the repositories in process memory.
// It is the persistence used by the package tests.
package memory

import (
	"github.com/yakanechi/screwdriver/internal/app"
	"sort"
	"sync"
	"time"
)

// NewDB creates an empty storage.
func NewDB() *DB {
	return &DB{
		pipelines: make(map[uint64]app.Pipeline),
		jobs:      make(map[uint64]app.Job),
		events:    make(map[uint64]app.Event),
		builds:    make(map[uint64]app.Build),
		now:       time.Now,
	}
}

// DB keeps the entities shared by the repositories.
type DB struct {
	mux       sync.RWMutex
	pipelines map[uint64]app.Pipeline
	jobs      map[uint64]app.Job
	events    map[uint64]app.Event
	builds    map[uint64]app.Build
	seq       uint64
	now       func() time.Time
}

// AddPipeline stores the pipeline, assigning an id if it has none.
func (db *DB) AddPipeline(p app.Pipeline) app.Pipeline {
	db.mux.Lock()
	defer db.mux.Unlock()
	if p.ID == 0 {
		p.ID = db.nextID()
	}
	db.pipelines[p.ID] = p
	return p
}

// AddJob stores the job, assigning an id if it has none.
func (db *DB) AddJob(j app.Job) app.Job {
	db.mux.Lock()
	defer db.mux.Unlock()
	if j.ID == 0 {
		j.ID = db.nextID()
	}
	if j.State == "" {
		j.State = app.StatusEnabled
	}
	db.jobs[j.ID] = j
	return j
}

// PutBuild overwrites the stored build, e.g. to simulate the executor finishing it.
func (db *DB) PutBuild(b app.Build) {
	db.mux.Lock()
	defer db.mux.Unlock()
	db.builds[b.ID] = cloneBuild(b)
}

func (db *DB) nextID() uint64 {
	db.seq++
	return db.seq
}

func cloneBuild(b app.Build) app.Build {
	b.ParentBuilds = b.ParentBuilds.Clone()
	b.ParentBuildIDs = append([]uint64(nil), b.ParentBuildIDs...)
	return b
}

func cloneEvent(e app.Event) app.Event {
	e.ParentBuilds = e.ParentBuilds.Clone()
	e.ParentBuildIDs = append([]uint64(nil), e.ParentBuildIDs...)
	return e
}

func sortBuilds(builds []app.Build) {
	sort.Slice(builds, func(i, j int) bool { return builds[i].ID < builds[j].ID })
}
