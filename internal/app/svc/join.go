package svc

import (
	"context"
	"github.com/beldeveloper/go-errors-context"
	"github.com/yakanechi/screwdriver/internal/app"
	"log"
)

// JoinState is the outcome of evaluating the join members of a downstream build.
type JoinState struct {
	Done       bool
	HasFailure bool
}

// NewJoin creates a new instance of the join evaluator.
func NewJoin(buildRepo app.BuildRepo, materializer Materializer) Join {
	return Join{buildRepo: buildRepo, materializer: materializer}
}

// Join decides whether a fan-in build can run.
type Join struct {
	buildRepo    app.BuildRepo
	materializer Materializer
}

// Evaluate checks the recorded build of every join member.
// Members without a recorded build are not done; they never count as failed.
func (s Join) Evaluate(ctx context.Context, b app.Build, join []string, pipelineID uint64) (JoinState, error) {
	st := JoinState{Done: true}
	for _, name := range join {
		pid, jobName := app.ParseJobRef(name, pipelineID)
		id := b.ParentBuilds.BuildID(pid, jobName)
		if id == 0 {
			st.Done = false
			continue
		}
		parent, err := s.buildRepo.FindByID(ctx, id)
		if err != nil {
			return st, errors.WrapContext(err, errors.Context{
				Path:   "svc.Join.Evaluate.FindByID",
				Params: errors.Params{"build": b.ID, "parent": id},
			})
		}
		if app.IsFailed(parent.Status) {
			st.HasFailure = true
		}
		if !app.IsTerminal(parent.Status) {
			st.Done = false
		}
	}
	return st, nil
}

// Apply moves the build according to the join state.
// A failed member vetoes the build permanently; builds past CREATED are left untouched.
func (s Join) Apply(ctx context.Context, b app.Build, st JoinState) (app.Build, error) {
	if !b.Status.IsPending() {
		return b, nil
	}
	if st.HasFailure {
		b.Status = app.StatusFailure
		changed, err := s.buildRepo.UpdateStatus(ctx, b, app.StatusCreated)
		if err != nil {
			return b, errors.WrapContext(err, errors.Context{
				Path:   "svc.Join.Apply.UpdateStatus",
				Params: errors.Params{"build": b.ID, "status": b.Status},
			})
		}
		if !changed {
			b, err = s.buildRepo.FindByID(ctx, b.ID)
			return b, errors.WrapContext(err, errors.Context{
				Path:   "svc.Join.Apply.FindByID",
				Params: errors.Params{"build": b.ID},
			})
		}
		log.Printf("The build #%d is failed because one of its join members failed\n", b.ID)
		return b, nil
	}
	if !st.Done {
		return b, nil
	}
	b, err := s.materializer.Start(ctx, b)
	return b, errors.WrapContext(err, errors.Context{
		Path:   "svc.Join.Apply.Start",
		Params: errors.Params{"build": b.ID},
	})
}
