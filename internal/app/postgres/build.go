package postgres

import (
	"context"
	"github.com/beldeveloper/go-errors-context"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/yakanechi/screwdriver/internal/app"
	"github.com/yakanechi/screwdriver/internal/app/errtype"
)

const (
	buildColumns = `"b"."id", "b"."job_id", "b"."event_id", "b"."status", "b"."parent_build_ids", "b"."parent_builds",
	"b"."sha", "b"."config_pipeline_sha", "b"."base_branch", "b"."pr_ref", "b"."pr_source", "b"."pr_url",
	"b"."pr_branch_name", "b"."username", "b"."scm_context", "b"."triggered", "b"."created_at"`

	uniqueViolation = "23505"
)

var terminalStatuses = []string{
	string(app.StatusSuccess),
	string(app.StatusFailure),
	string(app.StatusAborted),
	string(app.StatusUnstable),
}

// NewBuild creates a new instance of the repository.
func NewBuild(conn *pgxpool.Pool) app.BuildRepo {
	return Build{conn: conn}
}

// Build implements a repository.
type Build struct {
	conn *pgxpool.Pool
}

// FindByID returns the one build with the specific ID.
func (r Build) FindByID(ctx context.Context, id uint64) (app.Build, error) {
	q := `SELECT ` + buildColumns + ` FROM "builds" "b" WHERE "b"."id" = $1`
	b, err := scanBuild(r.conn.QueryRow(ctx, q, id))
	return b, errors.WrapContext(err, errors.Context{
		Path:   "postgres.Build.FindByID.Scan",
		Params: errors.Params{"build": id},
	})
}

// FindByEventJob returns the build of the job within the event.
func (r Build) FindByEventJob(ctx context.Context, eventID, jobID uint64) (app.Build, error) {
	q := `SELECT ` + buildColumns + ` FROM "builds" "b" WHERE "b"."event_id" = $1 AND "b"."job_id" = $2`
	b, err := scanBuild(r.conn.QueryRow(ctx, q, eventID, jobID))
	return b, errors.WrapContext(err, errors.Context{
		Path:   "postgres.Build.FindByEventJob.Scan",
		Params: errors.Params{"event": eventID, "job": jobID},
	})
}

// FindByEvent returns all builds of the event.
func (r Build) FindByEvent(ctx context.Context, eventID uint64) ([]app.Build, error) {
	q := `SELECT ` + buildColumns + ` FROM "builds" "b" WHERE "b"."event_id" = $1 ORDER BY "b"."id"`
	res, err := r.query(ctx, q, eventID)
	return res, errors.WrapContext(err, errors.Context{
		Path:   "postgres.Build.FindByEvent",
		Params: errors.Params{"event": eventID},
	})
}

// FindLatestByGroupEvent returns the newest build per job across the event and its restarts.
func (r Build) FindLatestByGroupEvent(ctx context.Context, groupEventID uint64) ([]app.Build, error) {
	q := `SELECT DISTINCT ON ("b"."job_id") ` + buildColumns + `
		FROM "builds" "b"
		INNER JOIN "events" "e" ON "e"."id" = "b"."event_id"
		WHERE "e"."id" = $1 OR "e"."group_event_id" = $1
		ORDER BY "b"."job_id", "b"."id" DESC`
	res, err := r.query(ctx, q, groupEventID)
	return res, errors.WrapContext(err, errors.Context{
		Path:   "postgres.Build.FindLatestByGroupEvent",
		Params: errors.Params{"event": groupEventID},
	})
}

// FindUntriggered returns the oldest finished build whose triggers were not processed yet.
func (r Build) FindUntriggered(ctx context.Context) (app.Build, error) {
	q := `SELECT ` + buildColumns + ` FROM "builds" "b"
		WHERE "b"."triggered" = FALSE AND "b"."status" = ANY($1)
		ORDER BY "b"."id" LIMIT 1`
	b, err := scanBuild(r.conn.QueryRow(ctx, q, terminalStatuses))
	return b, errors.WrapContext(err, errors.Context{Path: "postgres.Build.FindUntriggered.Scan"})
}

// Add saves a new build. A second build of the same job within the event is rejected with errtype.ErrConflict.
func (r Build) Add(ctx context.Context, b app.Build) (app.Build, error) {
	q := `INSERT INTO "builds" ("job_id", "event_id", "status", "parent_build_ids", "parent_builds", "sha",
		"config_pipeline_sha", "base_branch", "pr_ref", "pr_source", "pr_url", "pr_branch_name", "username",
		"scm_context", "triggered")
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING "id", "created_at"`
	err := r.conn.QueryRow(
		ctx, q, b.JobID, b.EventID, string(b.Status), ids(b.ParentBuildIDs), b.ParentBuilds, b.SHA,
		b.ConfigPipelineSHA, b.BaseBranch, b.PR.Ref, b.PR.Source, b.PR.URL, b.PR.BranchName, b.Username,
		b.ScmContext, b.Triggered,
	).Scan(&b.ID, &b.CreatedAt)
	if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == uniqueViolation {
		err = errtype.ErrConflict
	}
	return b, errors.WrapContext(err, errors.Context{
		Path:   "postgres.Build.Add.Scan",
		Params: errors.Params{"event": b.EventID, "job": b.JobID},
	})
}

// UpdateStatus sets the status if the stored one is still one of the expected statuses.
func (r Build) UpdateStatus(ctx context.Context, b app.Build, from ...app.Status) (bool, error) {
	expected := make([]string, len(from))
	for i, s := range from {
		expected[i] = string(s)
	}
	q := `UPDATE "builds" SET "status" = $2 WHERE "id" = $1 AND "status" = ANY($3)`
	tag, err := r.conn.Exec(ctx, q, b.ID, string(b.Status), expected)
	if err != nil {
		return false, errors.WrapContext(err, errors.Context{
			Path:   "postgres.Build.UpdateStatus.Exec",
			Params: errors.Params{"build": b.ID, "status": b.Status},
		})
	}
	return tag.RowsAffected() > 0, nil
}

// MergeParentBuilds merges the lineage into the stored one under a row lock.
func (r Build) MergeParentBuilds(ctx context.Context, id uint64, pb app.ParentBuilds, parentBuildID uint64) (app.Build, error) {
	var b app.Build
	err := r.conn.BeginFunc(ctx, func(tx pgx.Tx) error {
		var err error
		q := `SELECT ` + buildColumns + ` FROM "builds" "b" WHERE "b"."id" = $1 FOR UPDATE`
		b, err = scanBuild(tx.QueryRow(ctx, q, id))
		if err != nil {
			return err
		}
		b.ParentBuilds = b.ParentBuilds.Merge(pb)
		if parentBuildID != 0 && !b.HasParent(parentBuildID) {
			b.ParentBuildIDs = append([]uint64{parentBuildID}, b.ParentBuildIDs...)
		}
		q = `UPDATE "builds" SET "parent_builds" = $2, "parent_build_ids" = $3 WHERE "id" = $1`
		_, err = tx.Exec(ctx, q, id, b.ParentBuilds, ids(b.ParentBuildIDs))
		return err
	})
	return b, errors.WrapContext(err, errors.Context{
		Path:   "postgres.Build.MergeParentBuilds",
		Params: errors.Params{"build": id},
	})
}

// ClaimTriggers marks the triggers of the build as processed unless somebody did it before.
func (r Build) ClaimTriggers(ctx context.Context, id uint64) (bool, error) {
	q := `UPDATE "builds" SET "triggered" = TRUE WHERE "id" = $1 AND "triggered" = FALSE`
	tag, err := r.conn.Exec(ctx, q, id)
	if err != nil {
		return false, errors.WrapContext(err, errors.Context{
			Path:   "postgres.Build.ClaimTriggers.Exec",
			Params: errors.Params{"build": id},
		})
	}
	return tag.RowsAffected() > 0, nil
}

func (r Build) query(ctx context.Context, q string, args ...interface{}) ([]app.Build, error) {
	rows, err := r.conn.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make([]app.Build, 0)
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

func scanBuild(row pgx.Row) (app.Build, error) {
	var b app.Build
	var status string
	err := row.Scan(
		&b.ID, &b.JobID, &b.EventID, &status, &b.ParentBuildIDs, &b.ParentBuilds,
		&b.SHA, &b.ConfigPipelineSHA, &b.BaseBranch, &b.PR.Ref, &b.PR.Source, &b.PR.URL,
		&b.PR.BranchName, &b.Username, &b.ScmContext, &b.Triggered, &b.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return b, errtype.ErrNotFound
	}
	b.Status = app.Status(status)
	return b, err
}
