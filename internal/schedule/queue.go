// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package schedule runs deferred work on the server's tick goroutine.
package schedule

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/pluginhost/pkg/errutil"
)

// Task is a closure scheduled for the tick goroutine.
type Task func(ctx context.Context)

type queued struct {
	owner string
	task  Task
}

// Queue collects tasks from any goroutine and runs them, in enqueue order,
// when the tick goroutine drains it.
type Queue struct {
	mu     sync.Mutex
	tasks  []queued
	logger *slog.Logger
}

// NewQueue creates an empty queue. A nil logger uses slog.Default.
func NewQueue(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{logger: logger}
}

// Enqueue appends task. owner is used for logging and DropOwner.
func (q *Queue) Enqueue(owner string, task Task) {
	if task == nil {
		return
	}
	q.mu.Lock()
	q.tasks = append(q.tasks, queued{owner: owner, task: task})
	q.mu.Unlock()
}

// Drain runs every task queued before the call and returns how many ran.
// Tasks enqueued while draining wait for the next Drain. A panicking task
// is logged and the remaining tasks still run.
func (q *Queue) Drain(ctx context.Context) int {
	q.mu.Lock()
	batch := q.tasks
	q.tasks = nil
	q.mu.Unlock()

	for _, t := range batch {
		q.run(ctx, t)
	}
	return len(batch)
}

func (q *Queue) run(ctx context.Context, t queued) {
	defer func() {
		if r := recover(); r != nil {
			err := oops.Code("TASK_PANIC").With("owner", t.owner).Errorf("%v", r)
			errutil.LogErrorContext(ctx, q.logger, "scheduled task panicked", err)
		}
	}()
	t.task(ctx)
}

// DropOwner discards queued tasks belonging to owner.
func (q *Queue) DropOwner(owner string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.tasks[:0]
	for _, t := range q.tasks {
		if t.owner != owner {
			kept = append(kept, t)
		}
	}
	dropped := len(q.tasks) - len(kept)
	for i := len(kept); i < len(q.tasks); i++ {
		q.tasks[i] = queued{}
	}
	q.tasks = kept
	return dropped
}

// Len reports how many tasks are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

