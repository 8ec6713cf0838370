package postgres

import (
	"context"
	"github.com/beldeveloper/go-errors-context"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/yakanechi/screwdriver/internal/app"
	"github.com/yakanechi/screwdriver/internal/app/errtype"
)

// NewPipeline creates a new instance of the repository.
func NewPipeline(conn *pgxpool.Pool) app.PipelineRepo {
	return Pipeline{conn: conn}
}

// Pipeline implements a repository.
type Pipeline struct {
	conn *pgxpool.Pool
}

// FindByID returns the one pipeline with the specific ID.
func (r Pipeline) FindByID(ctx context.Context, id uint64) (app.Pipeline, error) {
	var p app.Pipeline
	q := `SELECT "id", "name", "scm_uri", "scm_context" FROM "pipelines" WHERE "id" = $1`
	err := r.conn.QueryRow(ctx, q, id).Scan(&p.ID, &p.Name, &p.ScmURI, &p.ScmContext)
	if err == pgx.ErrNoRows {
		err = errtype.ErrNotFound
	}
	return p, errors.WrapContext(err, errors.Context{
		Path:   "postgres.Pipeline.FindByID.Scan",
		Params: errors.Params{"pipeline": id},
	})
}
