package postgres

import (
	"context"
	"github.com/beldeveloper/go-errors-context"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/yakanechi/screwdriver/internal/app"
	"github.com/yakanechi/screwdriver/internal/app/errtype"
)

const jobColumns = `"id", "pipeline_id", "name", "state", "join", "triggers"`

// NewJob creates a new instance of the repository.
func NewJob(conn *pgxpool.Pool) app.JobRepo {
	return Job{conn: conn}
}

// Job implements a repository.
type Job struct {
	conn *pgxpool.Pool
}

// FindByID returns the one job with the specific ID.
func (r Job) FindByID(ctx context.Context, id uint64) (app.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM "jobs" WHERE "id" = $1`
	j, err := scanJob(r.conn.QueryRow(ctx, q, id))
	return j, errors.WrapContext(err, errors.Context{
		Path:   "postgres.Job.FindByID.Scan",
		Params: errors.Params{"job": id},
	})
}

// FindByName returns the job of the pipeline with the specific name.
func (r Job) FindByName(ctx context.Context, pipelineID uint64, name string) (app.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM "jobs" WHERE "pipeline_id" = $1 AND "name" = $2`
	j, err := scanJob(r.conn.QueryRow(ctx, q, pipelineID, name))
	return j, errors.WrapContext(err, errors.Context{
		Path:   "postgres.Job.FindByName.Scan",
		Params: errors.Params{"pipeline": pipelineID, "job": name},
	})
}

func scanJob(row pgx.Row) (app.Job, error) {
	var j app.Job
	var state string
	err := row.Scan(&j.ID, &j.PipelineID, &j.Name, &state, &j.Join, &j.Triggers)
	if err == pgx.ErrNoRows {
		return j, errtype.ErrNotFound
	}
	j.State = app.Status(state)
	return j, err
}
