package dispatcher

import (
	"context"

	"go-modguard/internal/models"
)

type JobPriority uint8

const (
	PriorityLow JobPriority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

type JobType uint8

const (
	JobDeleteMessage JobType = iota
	JobApplyPunishment
	JobReversePunishment
	JobPostReport
)

func (t JobType) String() string {
	switch t {
	case JobDeleteMessage:
		return "delete_message"
	case JobApplyPunishment:
		return "apply_punishment"
	case JobReversePunishment:
		return "reverse_punishment"
	case JobPostReport:
		return "post_report"
	default:
		return "unknown"
	}
}

func (t JobType) priority() JobPriority {
	switch t {
	case JobApplyPunishment:
		return PriorityCritical
	case JobDeleteMessage:
		return PriorityHigh
	case JobReversePunishment:
		return PriorityNormal
	default:
		return PriorityLow
	}
}

type Job struct {
	Type       JobType
	GuildID    string
	ChannelID  string
	MessageID  string
	MemberID   string
	Punishment models.Punishment
	Reason     string
	Report     models.Report

	applySeq uint64
}

// JobQueue is a bounded queue with one lane per priority. Enqueue never
// blocks; Dequeue prefers higher lanes.
type JobQueue struct {
	lanes [PriorityCritical + 1]chan *Job
}

func NewJobQueue(size int) *JobQueue {
	if size <= 0 {
		size = 1024
	}
	q := &JobQueue{}
	for i := range q.lanes {
		q.lanes[i] = make(chan *Job, size)
	}
	return q
}

func (q *JobQueue) Enqueue(job *Job) bool {
	select {
	case q.lanes[job.Type.priority()] <- job:
		return true
	default:
		return false
	}
}

func (q *JobQueue) Dequeue(ctx context.Context) (*Job, bool) {
	for p := len(q.lanes) - 1; p >= 0; p-- {
		select {
		case job := <-q.lanes[p]:
			return job, true
		default:
		}
	}

	select {
	case job := <-q.lanes[PriorityCritical]:
		return job, true
	case job := <-q.lanes[PriorityHigh]:
		return job, true
	case job := <-q.lanes[PriorityNormal]:
		return job, true
	case job := <-q.lanes[PriorityLow]:
		return job, true
	case <-ctx.Done():
		return nil, false
	}
}

func (q *JobQueue) Size() int {
	n := 0
	for _, lane := range q.lanes {
		n += len(lane)
	}
	return n
}
