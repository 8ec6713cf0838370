package svc

import (
	"context"
	"github.com/beldeveloper/go-errors-context"
	"github.com/yakanechi/screwdriver/internal/app"
	"log"
	"time"
)

// WatchJobDelay defines the default delay between jobs.
const WatchJobDelay = time.Second

// NewWatcher creates a new instance of the watcher service.
func NewWatcher(jobs []app.WatcherJob, delay time.Duration) Watcher {
	if delay <= 0 {
		delay = WatchJobDelay
	}
	return Watcher{jobs: jobs, delay: delay}
}

// Watcher is a service that runs the sequences of jobs in a loop.
type Watcher struct {
	jobs  []app.WatcherJob
	delay time.Duration
}

// Watch runs the jobs until the context is done.
func (s Watcher) Watch(ctx context.Context) {
	t := time.NewTicker(s.delay)
	defer t.Stop()
	if len(s.jobs) == 0 {
		<-ctx.Done()
		return
	}
	for {
		for _, j := range s.jobs {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			if ctx.Err() != nil {
				return
			}
			err := j.Do(ctx)
			if err != nil {
				log.Println(errors.WrapContext(err, errors.Context{
					Path:   "svc.Watcher.Watch",
					Params: errors.Params{"job": j.Name},
				}))
			}
		}
	}
}
