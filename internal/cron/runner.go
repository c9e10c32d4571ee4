package cronrunner

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner schedules background jobs against the process root context, so
// shutdown cancels in-flight work and stops further triggers together.
type Runner struct {
	cron    *cron.Cron
	log     *zap.Logger
	rootCtx context.Context
}

func New(log *zap.Logger, rootCtx context.Context) *Runner {
	if rootCtx == nil {
		rootCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(cron.WithSeconds()),
		log:     log,
		rootCtx: rootCtx,
	}
}

// Add registers job under a six-field cron spec (seconds first) or an
// @every descriptor. A panicking job is contained and logged; it must not
// take the scheduler down with it.
func (r *Runner) Add(name, spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		defer func() {
			if rec := recover(); rec != nil && r.log != nil {
				r.log.Error("cron job panicked", zap.String("job", name), zap.Any("panic", rec))
			}
		}()
		ctx := r.rootCtx
		if ctx == nil {
			ctx = context.Background()
		}
		if ctx.Err() != nil {
			return
		}
		job(ctx)
	})
}

func (r *Runner) Start() {
	if r.log != nil {
		r.log.Info("cron started")
	}
	r.cron.Start()
}

func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	if r.log != nil {
		r.log.Info("cron stopped")
	}
}
