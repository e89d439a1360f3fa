// Package tasks runs long jobs off the main loop and hands their results
// back to it.
//
// A job produces an ordered list of deferred commands. The owner calls Poll
// on every tick; each finished job's commands are applied exactly once, in
// the order the job produced them, and the job is forgotten. Jobs cannot be
// cancelled: they run to completion or fail.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

var ErrClosed = errors.New("ledger closed")

// JobID identifies a job for the lifetime of a ledger.
type JobID uint64

// Result is a finished job.
type Result[C any] struct {
	ID       JobID
	Label    string
	Commands []C
	Err      error
}

type job[C any] struct {
	label  string
	done   chan struct{}
	result Result[C]
}

// Ledger tracks in-flight jobs yielding commands of type C.
type Ledger[C any] struct {
	mu     sync.Mutex
	jobs   map[JobID]*job[C]
	nextID JobID
	closed bool
	wg     sync.WaitGroup
	log    *slog.Logger
}

func New[C any](log *slog.Logger) *Ledger[C] {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger[C]{jobs: make(map[JobID]*job[C]), log: log}
}

// Spawn starts fn on its own goroutine under a human readable label.
func (l *Ledger[C]) Spawn(label string, fn func() ([]C, error)) (JobID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}
	l.nextID++
	id := l.nextID
	j := &job[C]{label: label, done: make(chan struct{})}
	j.result.ID = id
	j.result.Label = label
	l.jobs[id] = j

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer close(j.done)
		defer func() {
			if r := recover(); r != nil {
				j.result.Commands = nil
				j.result.Err = fmt.Errorf("job %q panicked: %v", label, r)
			}
		}()
		j.result.Commands, j.result.Err = fn()
	}()
	l.log.Debug("tasks: spawned", "id", id, "label", label)
	return id, nil
}

// Poll removes every finished job and passes it to apply, in spawn order.
// A failed job is reported with its error and no commands. Poll never
// blocks on a running job.
func (l *Ledger[C]) Poll(apply func(Result[C])) int {
	l.mu.Lock()
	var finished []*job[C]
	for id, j := range l.jobs {
		select {
		case <-j.done:
			finished = append(finished, j)
			delete(l.jobs, id)
		default:
		}
	}
	l.mu.Unlock()

	sort.Slice(finished, func(a, b int) bool { return finished[a].result.ID < finished[b].result.ID })
	for _, j := range finished {
		res := j.result
		if res.Err != nil {
			res.Commands = nil
			l.log.Error("tasks: job failed", "id", res.ID, "label", res.Label, "error", res.Err)
		}
		apply(res)
	}
	return len(finished)
}

// Pending lists the labels of jobs not yet polled, in spawn order.
func (l *Ledger[C]) Pending() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]JobID, 0, len(l.jobs))
	for id := range l.jobs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = l.jobs[id].label
	}
	return out
}

func (l *Ledger[C]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.jobs)
}

// Wait blocks until every spawned job has finished running, or ctx is done.
// Finished jobs still need a Poll to be applied.
func (l *Ledger[C]) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects further Spawn calls. Running jobs are not interrupted.
func (l *Ledger[C]) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}
