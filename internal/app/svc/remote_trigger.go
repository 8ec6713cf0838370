package svc

import (
	"context"
	"github.com/beldeveloper/go-errors-context"
	"github.com/yakanechi/screwdriver/internal/app"
)

// NewRemoteTrigger creates a new instance of the cross-pipeline trigger.
func NewRemoteTrigger(materializer Materializer) RemoteTrigger {
	return RemoteTrigger{materializer: materializer}
}

// RemoteTrigger starts a fresh event family in another pipeline.
// The jobs of the new event are created by that event's own workflow evaluation.
type RemoteTrigger struct {
	materializer Materializer
}

// Run creates the external event whose lineage holds the upstream build only.
func (t RemoteTrigger) Run(ctx context.Context, up app.Upstream, externalPipelineID uint64) (app.Event, error) {
	e, err := t.materializer.CreateEvent(ctx, FormCreateEvent{
		Upstream:           up,
		ExternalPipelineID: externalPipelineID,
		ParentBuilds:       app.SeedParentBuilds(up, nil, externalPipelineID),
		ParentEventID:      up.Event.ID,
	})
	return e, errors.WrapContext(err, errors.Context{
		Path:   "svc.RemoteTrigger.Run.CreateEvent",
		Params: errors.Params{"pipeline": externalPipelineID, "trigger": up.TriggerName()},
	})
}
