//go:build integration

// Run with: go test -tags=integration ./internal/app/postgres/...
// A running Docker daemon is required.
package postgres

import (
	"context"
	"fmt"
	"github.com/beldeveloper/go-errors-context"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/yakanechi/screwdriver/internal/app"
	"github.com/yakanechi/screwdriver/internal/app/errtype"
	"sync"
	"testing"
)

func connect(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithInitScripts("schema.sql"),
		tcpostgres.WithDatabase("triggers"),
		tcpostgres.WithUsername("sd"),
		tcpostgres.WithPassword("sd"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)
	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	conn, err := pgxpool.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(conn.Close)
	return conn
}

func addPipeline(t *testing.T, conn *pgxpool.Pool, name string) app.Pipeline {
	t.Helper()
	p := app.Pipeline{Name: name, ScmContext: "github:github.com"}
	q := `INSERT INTO "pipelines" ("name", "scm_context") VALUES ($1, $2) RETURNING "id"`
	require.NoError(t, conn.QueryRow(context.Background(), q, p.Name, p.ScmContext).Scan(&p.ID))
	return p
}

func addJob(t *testing.T, conn *pgxpool.Pool, p app.Pipeline, name string, join []string) app.Job {
	t.Helper()
	j := app.Job{PipelineID: p.ID, Name: name, State: app.StatusEnabled, Join: join, Triggers: []string{}}
	if j.Join == nil {
		j.Join = []string{}
	}
	q := `INSERT INTO "jobs" ("pipeline_id", "name", "join", "triggers") VALUES ($1, $2, $3, $4) RETURNING "id"`
	require.NoError(t, conn.QueryRow(context.Background(), q, p.ID, name, j.Join, j.Triggers).Scan(&j.ID))
	return j
}

func TestPostgres(t *testing.T) {
	ctx := context.Background()
	conn := connect(t)
	pipelines := NewPipeline(conn)
	jobs := NewJob(conn)
	events := NewEvent(conn)
	builds := NewBuild(conn)

	p := addPipeline(t, conn, "p")
	a := addJob(t, conn, p, "A", nil)
	c := addJob(t, conn, p, "C", []string{"A", "B"})

	t.Run("pipeline and jobs", func(t *testing.T) {
		res, err := pipelines.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p, res)

		j, err := jobs.FindByName(ctx, p.ID, "C")
		require.NoError(t, err)
		assert.Equal(t, c.ID, j.ID)
		assert.Equal(t, app.StatusEnabled, j.State)
		assert.Equal(t, []string{"A", "B"}, j.Join)
		assert.True(t, j.IsJoin())
		j, err = jobs.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "A", j.Name)
		assert.False(t, j.IsJoin())

		_, err = jobs.FindByName(ctx, p.ID, "missing")
		assert.True(t, errors.Is(err, errtype.ErrNotFound))
		_, err = pipelines.FindByID(ctx, 999999)
		assert.True(t, errors.Is(err, errtype.ErrNotFound))
	})

	root, err := events.Add(ctx, app.Event{PipelineID: p.ID, Type: app.EventTypePipeline, SHA: "deadbeef"})
	require.NoError(t, err)

	t.Run("events", func(t *testing.T) {
		res, err := events.FindByID(ctx, root.ID)
		require.NoError(t, err)
		assert.Zero(t, res.ParentEventID)
		assert.Zero(t, res.GroupEventID)
		assert.Equal(t, app.ParentBuilds{}, res.ParentBuilds)

		lineage := app.ParentBuilds{p.ID: {EventID: root.ID, Jobs: map[string]uint64{"A": 7, "B": 0}}}
		child, err := events.Add(ctx, app.Event{
			PipelineID:     p.ID,
			ParentEventID:  root.ID,
			GroupEventID:   root.ID,
			ParentBuildIDs: []uint64{7},
			ParentBuilds:   lineage,
		})
		require.NoError(t, err)
		children, err := events.FindByParent(ctx, root.ID)
		require.NoError(t, err)
		require.Len(t, children, 1)
		assert.Equal(t, child.ID, children[0].ID)
		assert.Equal(t, root.ID, children[0].GroupEventID)
		assert.Equal(t, []uint64{7}, children[0].ParentBuildIDs)
		assert.Equal(t, lineage, children[0].ParentBuilds)

		_, err = events.FindByID(ctx, 999999)
		assert.True(t, errors.Is(err, errtype.ErrNotFound))
	})

	buildA, err := builds.Add(ctx, app.Build{JobID: a.ID, EventID: root.ID, Status: app.StatusSuccess})
	require.NoError(t, err)
	buildC, err := builds.Add(ctx, app.Build{
		JobID:          c.ID,
		EventID:        root.ID,
		Status:         app.StatusCreated,
		ParentBuildIDs: []uint64{buildA.ID},
		ParentBuilds:   app.ParentBuilds{p.ID: {EventID: root.ID, Jobs: map[string]uint64{"A": buildA.ID, "B": 0}}},
	})
	require.NoError(t, err)

	t.Run("duplicate build", func(t *testing.T) {
		_, err := builds.Add(ctx, app.Build{JobID: c.ID, EventID: root.ID, Status: app.StatusCreated})
		assert.True(t, errors.Is(err, errtype.ErrConflict))

		res, err := builds.FindByEventJob(ctx, root.ID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, buildC.ID, res.ID)
		assert.Equal(t, buildC.ParentBuilds, res.ParentBuilds)
	})

	t.Run("merge under lock", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := uint64(1); i <= 8; i++ {
			wg.Add(1)
			go func(i uint64) {
				defer wg.Done()
				pb := app.ParentBuilds{p.ID: {EventID: root.ID, Jobs: map[string]uint64{fmt.Sprintf("J%d", i): 100 + i}}}
				_, err := builds.MergeParentBuilds(ctx, buildC.ID, pb, 100+i)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		res, err := builds.FindByID(ctx, buildC.ID)
		require.NoError(t, err)
		for i := uint64(1); i <= 8; i++ {
			assert.Equal(t, 100+i, res.ParentBuilds.BuildID(p.ID, fmt.Sprintf("J%d", i)))
			assert.True(t, res.HasParent(100+i))
		}
		assert.Equal(t, buildA.ID, res.ParentBuilds.BuildID(p.ID, "A"))
		assert.Len(t, res.ParentBuildIDs, 9)
	})

	t.Run("conditional status", func(t *testing.T) {
		queued := buildC
		queued.Status = app.StatusQueued
		changed, err := builds.UpdateStatus(ctx, queued, app.StatusCreated)
		require.NoError(t, err)
		assert.True(t, changed)

		failed := buildC
		failed.Status = app.StatusFailure
		changed, err = builds.UpdateStatus(ctx, failed, app.StatusCreated)
		require.NoError(t, err)
		assert.False(t, changed)

		res, err := builds.FindByID(ctx, buildC.ID)
		require.NoError(t, err)
		assert.Equal(t, app.StatusQueued, res.Status)
	})

	t.Run("claim triggers", func(t *testing.T) {
		claimed, err := builds.ClaimTriggers(ctx, buildA.ID)
		require.NoError(t, err)
		assert.True(t, claimed)
		claimed, err = builds.ClaimTriggers(ctx, buildA.ID)
		require.NoError(t, err)
		assert.False(t, claimed)

		res, err := builds.FindByID(ctx, buildA.ID)
		require.NoError(t, err)
		assert.True(t, res.Triggered)
	})

	t.Run("latest builds of the group", func(t *testing.T) {
		restart, err := events.Add(ctx, app.Event{PipelineID: p.ID, GroupEventID: root.ID})
		require.NoError(t, err)
		newer, err := builds.Add(ctx, app.Build{JobID: a.ID, EventID: restart.ID, Status: app.StatusRunning})
		require.NoError(t, err)

		res, err := builds.FindLatestByGroupEvent(ctx, root.ID)
		require.NoError(t, err)
		ids := make([]uint64, 0, len(res))
		for _, b := range res {
			ids = append(ids, b.ID)
		}
		assert.ElementsMatch(t, []uint64{newer.ID, buildC.ID}, ids)

		res, err = builds.FindByEvent(ctx, root.ID)
		require.NoError(t, err)
		assert.Len(t, res, 2)
	})
}
