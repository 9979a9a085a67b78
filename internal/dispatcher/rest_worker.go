package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"go-modguard/internal/logging"
	"go-modguard/internal/metrics"
	"go-modguard/internal/models"
)

// RESTWorker pulls jobs from the queue and runs them against the platform.
type RESTWorker struct {
	workerID int
	queue    *JobQueue
	order    *memberOrder
	platform Platform
	limiter  *GuildLimiter
	recorder ActionRecorder
	timeout  time.Duration
}

func (rw *RESTWorker) Run(ctx context.Context) {
	for {
		job, ok := rw.queue.Dequeue(ctx)
		if !ok {
			return
		}
		metrics.SetQueueDepth(rw.queue.Size())
		rw.executeJob(ctx, job)
	}
}

func (rw *RESTWorker) executeJob(parent context.Context, job *Job) {
	if rw.order != nil {
		defer rw.order.release(job)
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Error("[DISPATCHER] Worker %d recovered from panic in %s job for guild %s: %v",
				rw.workerID, job.Type, job.GuildID, r)
		}
	}()

	ctx, cancel := context.WithTimeout(parent, rw.timeout)
	defer cancel()

	if rw.order == nil {
		rw.report(job, rw.execute(ctx, job))
		return
	}

	var err error
	if !rw.order.run(job, func() { err = rw.execute(ctx, job) }) {
		metrics.RecordReversal(job.Punishment.Kind.String(), "superseded")
		logging.LogSkipped(logging.ActionLogEntry{
			GuildID:  job.GuildID,
			MemberID: job.MemberID,
			Action:   job.Type.String(),
			Detail:   job.Punishment.String(),
		}, "superseded by a later punishment")
		return
	}
	rw.report(job, err)
}

func (rw *RESTWorker) execute(ctx context.Context, job *Job) error {
	if rw.limiter != nil {
		if err := rw.limiter.Wait(ctx, job.GuildID); err != nil {
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}

	start := time.Now()
	defer metrics.ObserveAction(job.Type.String(), start)

	switch job.Type {
	case JobDeleteMessage:
		return rw.platform.DeleteMessage(ctx, job.ChannelID, job.MessageID)
	case JobApplyPunishment:
		err := rw.platform.ApplyPunishment(ctx, job.GuildID, job.MemberID, job.Punishment, job.Reason)
		rw.record(ctx, job, false, err)
		return err
	case JobReversePunishment:
		err := rw.platform.ReversePunishment(ctx, job.GuildID, job.MemberID, job.Punishment)
		rw.record(ctx, job, true, err)
		return err
	case JobPostReport:
		return rw.platform.PostReport(ctx, job.ChannelID, job.Report)
	default:
		return fmt.Errorf("unknown job type %d", job.Type)
	}
}

func (rw *RESTWorker) report(job *Job, err error) {
	entry := logging.ActionLogEntry{
		GuildID:   job.GuildID,
		MemberID:  job.MemberID,
		ChannelID: job.ChannelID,
		Action:    job.Type.String(),
		Detail:    job.Punishment.String(),
	}

	result := "ok"
	switch {
	case err == nil:
	case IsStale(err):
		result = "stale"
		logging.LogSkipped(entry, err.Error())
		err = nil
	case errors.Is(err, ErrRateLimited):
		result = "rate_limited"
	default:
		result = "error"
	}

	switch job.Type {
	case JobApplyPunishment:
		metrics.RecordPunishment(job.Punishment.Kind.String(), result)
	case JobReversePunishment:
		metrics.RecordReversal(job.Punishment.Kind.String(), result)
	}

	if result != "stale" {
		logging.LogAction(entry, err)
	}
}

func (rw *RESTWorker) record(ctx context.Context, job *Job, reversal bool, err error) {
	if rw.recorder == nil {
		return
	}
	rec := models.ActionRecord{
		ID:        uuid.NewString(),
		GuildID:   job.GuildID,
		MemberID:  job.MemberID,
		Kind:      job.Punishment.Kind,
		Reversal:  reversal,
		Duration:  job.Punishment.Duration,
		Reason:    job.Reason,
		CreatedAt: time.Now(),
	}
	if err != nil {
		rec.Err = err.Error()
	}
	if rerr := rw.recorder.RecordAction(context.WithoutCancel(ctx), rec); rerr != nil {
		logging.Warn("[DISPATCHER] Failed to record %s for %s in guild %s: %v",
			job.Type, job.MemberID, job.GuildID, rerr)
	}
}
