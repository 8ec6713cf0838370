package postgres

import (
	"context"
	"github.com/beldeveloper/go-errors-context"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/yakanechi/screwdriver/internal/app"
	"github.com/yakanechi/screwdriver/internal/app/errtype"
)

const eventColumns = `"id", "pipeline_id", "type", "sha", "config_pipeline_sha", "base_branch", "start_from",
	"cause_message", "parent_build_ids", "parent_builds", "parent_event_id", "group_event_id",
	"pr_ref", "pr_source", "pr_url", "pr_branch_name", "created_at"`

// NewEvent creates a new instance of the repository.
func NewEvent(conn *pgxpool.Pool) app.EventRepo {
	return Event{conn: conn}
}

// Event implements a repository.
type Event struct {
	conn *pgxpool.Pool
}

// FindByID returns the one event with the specific ID.
func (r Event) FindByID(ctx context.Context, id uint64) (app.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM "events" WHERE "id" = $1`
	e, err := scanEvent(r.conn.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		err = errtype.ErrNotFound
	}
	return e, errors.WrapContext(err, errors.Context{
		Path:   "postgres.Event.FindByID.Scan",
		Params: errors.Params{"event": id},
	})
}

// FindByParent returns the events caused by the specific event.
func (r Event) FindByParent(ctx context.Context, parentEventID uint64) ([]app.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM "events" WHERE "parent_event_id" = $1 ORDER BY "id"`
	rows, err := r.conn.Query(ctx, q, parentEventID)
	if err != nil {
		return nil, errors.WrapContext(err, errors.Context{
			Path:   "postgres.Event.FindByParent.Query",
			Params: errors.Params{"event": parentEventID},
		})
	}
	defer rows.Close()
	res := make([]app.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, errors.WrapContext(err, errors.Context{
				Path:   "postgres.Event.FindByParent.Scan",
				Params: errors.Params{"event": parentEventID},
			})
		}
		res = append(res, e)
	}
	return res, errors.WrapContext(rows.Err(), errors.Context{
		Path:   "postgres.Event.FindByParent.Rows",
		Params: errors.Params{"event": parentEventID},
	})
}

// Add saves a new event.
func (r Event) Add(ctx context.Context, e app.Event) (app.Event, error) {
	q := `INSERT INTO "events" ("pipeline_id", "type", "sha", "config_pipeline_sha", "base_branch", "start_from",
		"cause_message", "parent_build_ids", "parent_builds", "parent_event_id", "group_event_id",
		"pr_ref", "pr_source", "pr_url", "pr_branch_name")
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10::int8, 0), NULLIF($11::int8, 0), $12, $13, $14, $15)
		RETURNING "id", "created_at"`
	err := r.conn.QueryRow(
		ctx, q, e.PipelineID, e.Type, e.SHA, e.ConfigPipelineSHA, e.BaseBranch, e.StartFrom,
		e.CauseMessage, ids(e.ParentBuildIDs), e.ParentBuilds, int64(e.ParentEventID), int64(e.GroupEventID),
		e.PR.Ref, e.PR.Source, e.PR.URL, e.PR.BranchName,
	).Scan(&e.ID, &e.CreatedAt)
	return e, errors.WrapContext(err, errors.Context{
		Path:   "postgres.Event.Add.Scan",
		Params: errors.Params{"pipeline": e.PipelineID},
	})
}

func scanEvent(row pgx.Row) (app.Event, error) {
	var e app.Event
	var parentEventID, groupEventID *int64
	err := row.Scan(
		&e.ID, &e.PipelineID, &e.Type, &e.SHA, &e.ConfigPipelineSHA, &e.BaseBranch, &e.StartFrom,
		&e.CauseMessage, &e.ParentBuildIDs, &e.ParentBuilds, &parentEventID, &groupEventID,
		&e.PR.Ref, &e.PR.Source, &e.PR.URL, &e.PR.BranchName, &e.CreatedAt,
	)
	if parentEventID != nil {
		e.ParentEventID = uint64(*parentEventID)
	}
	if groupEventID != nil {
		e.GroupEventID = uint64(*groupEventID)
	}
	return e, err
}

// ids keeps an empty list from being stored as NULL.
func ids(list []uint64) []uint64 {
	if list == nil {
		return []uint64{}
	}
	return list
}
