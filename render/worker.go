// Copyright 2019 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package render

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/googlegenomics/pileup/genomics"
	"github.com/googlegenomics/pileup/layout"
)

// Task is a request to lay out and draw a set of segments.  Segments and
// PreviousRows are owned by the worker once submitted.
type Task struct {
	Segments     []genomics.Segment
	PreviousRows []layout.Row
	Padding      int64

	Scale LinearScale
	// RowRange is the vertical pixel interval shared by all rows.
	RowRange [2]float64
}

// Result is the answer to a Task.  Seq is the value returned by the Submit
// call that produced it.
type Result struct {
	Seq   uint64
	Rows  []layout.Row
	Scale LinearScale
	Buffers
}

// Worker runs tasks on its own goroutine.  Only the most recently submitted
// task matters: a pending task is replaced by a newer Submit, and a result
// whose task was superseded while running is discarded.
type Worker struct {
	builder *Builder

	mu      sync.Mutex
	pending *Task
	seq     uint64
	latest  uint64 // read atomically by Run

	wake    chan struct{}
	results chan Result
}

// NewWorker returns a Worker; call Run to start processing.
func NewWorker(opts ...BuilderOption) *Worker {
	return &Worker{
		builder: NewBuilder(opts...),
		wake:    make(chan struct{}, 1),
		results: make(chan Result, 1),
	}
}

// Submit queues task and returns its sequence number.  It never blocks.
func (w *Worker) Submit(task Task) uint64 {
	w.mu.Lock()
	w.seq++
	seq := w.seq
	w.pending = &task
	atomic.StoreUint64(&w.latest, seq)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return seq
}

// Results returns the channel on which current results are delivered.
func (w *Worker) Results() <-chan Result {
	return w.results
}

// Run processes tasks until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		}

		w.mu.Lock()
		task, seq := w.pending, w.seq
		w.pending = nil
		w.mu.Unlock()
		if task == nil {
			continue
		}

		result := w.Process(*task)
		result.Seq = seq
		if seq < atomic.LoadUint64(&w.latest) {
			continue
		}

		select {
		case w.results <- result:
		case <-ctx.Done():
			return
		}
	}
}

// Process runs task on the calling goroutine.
func (w *Worker) Process(task Task) Result {
	rows := layout.Layout(task.Segments, task.PreviousRows, task.Padding)
	return Result{
		Rows:    rows,
		Scale:   task.Scale,
		Buffers: w.builder.Build(rows, task.Scale, task.RowRange),
	}
}
