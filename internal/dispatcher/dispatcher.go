package dispatcher

import (
	"context"
	"sync"
	"time"

	"go-modguard/internal/config"
	"go-modguard/internal/logging"
	"go-modguard/internal/metrics"
	"go-modguard/internal/models"
)

// Dispatcher runs platform calls on a fixed worker pool. Submitting never
// blocks: when the queue is full the job is dropped and logged.
type Dispatcher struct {
	queue   *JobQueue
	order   *memberOrder
	workers []*RESTWorker
	wg      sync.WaitGroup
}

type Options struct {
	Workers    int
	QueueSize  int
	Timeout    time.Duration
	GuildRate  float64
	GuildBurst int
	Recorder   ActionRecorder
}

func OptionsFromConfig(cfg config.NetworkConfig) Options {
	return Options{
		Workers:    cfg.WorkerCount,
		QueueSize:  cfg.QueueSize,
		Timeout:    cfg.ActionTimeout.Std(),
		GuildRate:  cfg.GuildRate,
		GuildBurst: cfg.GuildBurst,
	}
}

func New(platform Platform, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	d := &Dispatcher{queue: NewJobQueue(opts.QueueSize), order: newMemberOrder()}
	limiter := NewGuildLimiter(opts.GuildRate, opts.GuildBurst)
	for i := 0; i < opts.Workers; i++ {
		d.workers = append(d.workers, &RESTWorker{
			workerID: i,
			queue:    d.queue,
			order:    d.order,
			platform: platform,
			limiter:  limiter,
			recorder: opts.Recorder,
			timeout:  opts.Timeout,
		})
	}
	return d
}

// Run starts the workers and blocks until ctx is cancelled and every
// in-flight job has returned.
func (d *Dispatcher) Run(ctx context.Context) error {
	logging.Info("[DISPATCHER] Starting %d workers", len(d.workers))
	for _, w := range d.workers {
		d.wg.Add(1)
		go func(w *RESTWorker) {
			defer d.wg.Done()
			w.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	d.wg.Wait()
	return nil
}

func (d *Dispatcher) Submit(job *Job) bool {
	d.order.submit(job)
	if !d.queue.Enqueue(job) {
		d.order.release(job)
		metrics.RecordDropped(job.Type.String())
		logging.Warn("[DISPATCHER] Queue full, dropping %s for guild %s", job.Type, job.GuildID)
		return false
	}
	metrics.SetQueueDepth(d.queue.Size())
	return true
}

func (d *Dispatcher) DeleteMessage(guildID, channelID, messageID, reason string) {
	d.Submit(&Job{
		Type:      JobDeleteMessage,
		GuildID:   guildID,
		ChannelID: channelID,
		MessageID: messageID,
		Reason:    reason,
	})
}

func (d *Dispatcher) ApplyPunishment(guildID, memberID string, p models.Punishment, reason string) {
	d.Submit(&Job{
		Type:       JobApplyPunishment,
		GuildID:    guildID,
		MemberID:   memberID,
		Punishment: p,
		Reason:     reason,
	})
}

func (d *Dispatcher) ReversePunishment(guildID, memberID string, p models.Punishment) {
	d.Submit(&Job{
		Type:       JobReversePunishment,
		GuildID:    guildID,
		MemberID:   memberID,
		Punishment: p,
	})
}

func (d *Dispatcher) PostReport(guildID, channelID string, report models.Report) {
	if channelID == "" {
		return
	}
	d.Submit(&Job{
		Type:      JobPostReport,
		GuildID:   guildID,
		ChannelID: channelID,
		Report:    report,
	})
}

var _ Actions = (*Dispatcher)(nil)
