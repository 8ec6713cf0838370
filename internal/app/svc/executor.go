package svc

import (
	"context"
	"github.com/beldeveloper/go-errors-context"
	"github.com/yakanechi/screwdriver/internal/app"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ExecutorStartMethod is the full name of the RPC that places a queued build on a worker.
const ExecutorStartMethod = "/executor.Executor/Start"

// NewExecutor creates a new instance of the executor client.
func NewExecutor(conn grpc.ClientConnInterface) app.ExecutorSvc {
	return Executor{conn: conn}
}

// Executor implements an execution dispatch client.
type Executor struct {
	conn grpc.ClientConnInterface
}

// Start hands the build over to the executor.
func (s Executor) Start(ctx context.Context, b app.Build) error {
	req, err := structpb.NewStruct(map[string]interface{}{
		"buildId":           float64(b.ID),
		"jobId":             float64(b.JobID),
		"eventId":           float64(b.EventID),
		"sha":               b.SHA,
		"configPipelineSha": b.ConfigPipelineSHA,
		"baseBranch":        b.BaseBranch,
		"prRef":             b.PR.Ref,
		"username":          b.Username,
		"scmContext":        b.ScmContext,
	})
	if err != nil {
		return errors.WrapContext(err, errors.Context{
			Path:   "svc.Executor.Start.NewStruct",
			Params: errors.Params{"build": b.ID},
		})
	}
	var res structpb.Struct
	err = s.conn.Invoke(ctx, ExecutorStartMethod, req, &res)
	if err != nil {
		return errors.WrapContext(err, errors.Context{
			Path:   "svc.Executor.Start.Invoke",
			Params: errors.Params{"build": b.ID},
		})
	}
	if msg := res.GetFields()["error"].GetStringValue(); msg != "" {
		return errors.NewWithContext(msg, errors.Context{
			Path:   "svc.Executor.Start",
			Params: errors.Params{"build": b.ID},
		})
	}
	return nil
}
