// Package queue is the Redis-backed durable job broker for the catalog
// sync worker: enqueue-with-coalesce, dequeue, progress updates, and
// rate-limit-aware retry scheduling, all addressed through a single named
// list plus a per-job JSON record so job state survives a process restart.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stadam23/tradeup-ev/internal/apperr"
)

// Status is one state of the sync job state machine.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Progress is the observable progress object consumers poll.
type Progress struct {
	TotalCollections      int      `json:"totalCollections"`
	SyncedCollections     int      `json:"syncedCollections"`
	CurrentCollectionTag  string   `json:"currentCollectionTag,omitempty"`
	CurrentCollectionName string   `json:"currentCollectionName,omitempty"`
	CurrentRarity         string   `json:"currentRarity,omitempty"`
	SyncedTags            []string `json:"syncedTags,omitempty"`
}

// Job is the durable record for one sync run.
type Job struct {
	ID         string     `json:"id"`
	Status     Status     `json:"status"`
	QueuedAt   time.Time  `json:"queuedAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Error      string     `json:"error,omitempty"`
	Attempt    int        `json:"attempt"`
	Progress   Progress   `json:"progress"`
}

// Queue is the Redis-backed broker for a single named job queue.
type Queue struct {
	rdb  *redis.Client
	name string
}

func jobKey(name, id string) string { return fmt.Sprintf("%s:job:%s", name, id) }
func listKey(name string) string    { return fmt.Sprintf("%s:pending", name) }
func activeKey(name string) string  { return fmt.Sprintf("%s:active", name) }
func allKey(name string) string     { return fmt.Sprintf("%s:jobs", name) }

// New builds a Queue named queueName against the Redis instance at redisURL.
func New(redisURL, queueName string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	return &Queue{rdb: redis.NewClient(opts), name: queueName}, nil
}

// Close releases the underlying Redis connection.
func (q *Queue) Close() error { return q.rdb.Close() }

// Enqueue creates a new pending job unless an active, waiting, or delayed
// job already exists, in which case it returns that job's current state
// instead — the duplicate-trigger coalescing the sync worker requires.
func (q *Queue) Enqueue(ctx context.Context) (*Job, error) {
	if existing, ok, err := q.activeOrPending(ctx); err != nil {
		return nil, err
	} else if ok {
		return existing, nil
	}

	job := &Job{
		ID:       uuid.NewString(),
		Status:   StatusPending,
		QueuedAt: time.Now(),
	}
	if err := q.save(ctx, job); err != nil {
		return nil, err
	}
	if err := q.rdb.LPush(ctx, listKey(q.name), job.ID).Err(); err != nil {
		return nil, fmt.Errorf("pushing job %s: %w", job.ID, err)
	}
	return job, nil
}

func (q *Queue) activeOrPending(ctx context.Context) (*Job, bool, error) {
	activeID, err := q.rdb.Get(ctx, activeKey(q.name)).Result()
	if err == nil && activeID != "" {
		job, err := q.Get(ctx, activeID)
		if err == nil && job != nil && (job.Status == StatusPending || job.Status == StatusRunning) {
			return job, true, nil
		}
	} else if err != nil && err != redis.Nil {
		return nil, false, fmt.Errorf("checking active job: %w", err)
	}

	ids, err := q.rdb.LRange(ctx, listKey(q.name), 0, -1).Result()
	if err != nil {
		return nil, false, fmt.Errorf("scanning pending jobs: %w", err)
	}
	for _, id := range ids {
		job, err := q.Get(ctx, id)
		if err == nil && job != nil && job.Status == StatusPending {
			return job, true, nil
		}
	}
	return nil, false, nil
}

// Dequeue pops the next pending job id, marks it running, and returns it.
// It blocks up to timeout waiting for a job to appear.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.rdb.BRPop(ctx, timeout, listKey(q.name)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeuing job: %w", err)
	}
	id := res[1]

	job, err := q.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}

	now := time.Now()
	job.Status = StatusRunning
	job.StartedAt = &now
	if err := q.save(ctx, job); err != nil {
		return nil, err
	}
	if err := q.rdb.Set(ctx, activeKey(q.name), job.ID, 0).Err(); err != nil {
		return nil, fmt.Errorf("marking job %s active: %w", job.ID, err)
	}
	return job, nil
}

// UpdateProgress persists an updated progress object on a running job.
func (q *Queue) UpdateProgress(ctx context.Context, jobID string, progress Progress) error {
	job, err := q.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return apperr.NotFound("unknown job " + jobID)
	}
	job.Progress = progress
	return q.save(ctx, job)
}

// Complete marks a job completed.
func (q *Queue) Complete(ctx context.Context, jobID string) error {
	job, err := q.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return apperr.NotFound("unknown job " + jobID)
	}
	now := time.Now()
	job.Status = StatusCompleted
	job.FinishedAt = &now
	if err := q.save(ctx, job); err != nil {
		return err
	}
	return q.clearActive(ctx, jobID)
}

// Fail marks a job failed with the given error and clears the active slot —
// used for every non-rate-limit failure, per the worker's policy that only
// RateLimited errors pause rather than fail the job.
func (q *Queue) Fail(ctx context.Context, jobID string, cause error) error {
	job, err := q.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return apperr.NotFound("unknown job " + jobID)
	}
	now := time.Now()
	job.Status = StatusFailed
	job.FinishedAt = &now
	job.Error = cause.Error()
	if err := q.save(ctx, job); err != nil {
		return err
	}
	return q.clearActive(ctx, jobID)
}

// RetryAfter re-queues jobID for another dequeue after delay, honoring the
// retryAfterMs a RateLimited error carried, and bumps its attempt counter.
// The job stays "running" in the caller's view; the worker pauses rather
// than marking it failed.
func (q *Queue) RetryAfter(ctx context.Context, jobID string, delay time.Duration) error {
	job, err := q.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return apperr.NotFound("unknown job " + jobID)
	}
	job.Attempt++
	if err := q.save(ctx, job); err != nil {
		return err
	}

	timer := time.NewTimer(delay)
	go func() {
		defer timer.Stop()
		select {
		case <-timer.C:
			q.rdb.LPush(context.Background(), listKey(q.name), jobID)
		case <-ctx.Done():
		}
	}()
	return nil
}

func (q *Queue) clearActive(ctx context.Context, jobID string) error {
	activeID, err := q.rdb.Get(ctx, activeKey(q.name)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading active job: %w", err)
	}
	if activeID == jobID {
		return q.rdb.Del(ctx, activeKey(q.name)).Err()
	}
	return nil
}

// Get looks up a job by id, returning (nil, nil) when unknown.
func (q *Queue) Get(ctx context.Context, jobID string) (*Job, error) {
	raw, err := q.rdb.Get(ctx, jobKey(q.name, jobID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading job %s: %w", jobID, err)
	}
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("decoding job %s: %w", jobID, err)
	}
	return &job, nil
}

func (q *Queue) save(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", job.ID, err)
	}
	if err := q.rdb.Set(ctx, jobKey(q.name, job.ID), raw, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("saving job %s: %w", job.ID, err)
	}
	if err := q.rdb.SAdd(ctx, allKey(q.name), job.ID).Err(); err != nil {
		return fmt.Errorf("tracking job %s: %w", job.ID, err)
	}
	return nil
}

// List returns every known job for this queue along with whether one of
// them is currently active (pending or running) — the shape the sync
// status listing endpoint reports.
func (q *Queue) List(ctx context.Context) (active bool, jobs []*Job, err error) {
	ids, err := q.rdb.SMembers(ctx, allKey(q.name)).Result()
	if err != nil {
		return false, nil, fmt.Errorf("listing jobs: %w", err)
	}
	jobs = make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, gerr := q.Get(ctx, id)
		if gerr != nil || job == nil {
			continue
		}
		jobs = append(jobs, job)
		if job.Status == StatusPending || job.Status == StatusRunning {
			active = true
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].QueuedAt.After(jobs[j].QueuedAt) })
	return active, jobs, nil
}
