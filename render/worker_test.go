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
	"testing"
	"time"

	"github.com/googlegenomics/pileup/genomics"
	"github.com/googlegenomics/pileup/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTask(n int) Task {
	var segments []genomics.Segment
	for i := 0; i < n; i++ {
		segments = append(segments, genomics.Segment{ID: string(rune('a' + i)), From: int64(i * 3), To: int64(i*3 + 10)})
	}
	return Task{
		Segments: segments,
		Padding:  layout.DefaultPadding,
		Scale:    testScale,
		RowRange: [2]float64{0, 100},
	}
}

func TestWorker_Process(t *testing.T) {
	w := NewWorker(WithCapacity(8, 8))
	result := w.Process(testTask(4))

	require.NoError(t, layout.Validate(result.Rows, layout.DefaultPadding))
	assert.Equal(t, 4, layout.Count(result.Rows))
	assert.Equal(t, 4, result.Rects())
	assert.Equal(t, testScale, result.Scale)
}

func TestWorker_OnlyLatestTaskRuns(t *testing.T) {
	w := NewWorker(WithCapacity(8, 8))
	w.Submit(testTask(1))
	w.Submit(testTask(2))
	last := w.Submit(testTask(3))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	select {
	case result := <-w.Results():
		assert.Equal(t, last, result.Seq)
		assert.Equal(t, 3, layout.Count(result.Rows))
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for result")
	}
}

func TestWorker_ThreadsPreviousRows(t *testing.T) {
	w := NewWorker(WithCapacity(8, 8))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	first := testTask(3)
	w.Submit(first)
	var result Result
	select {
	case result = <-w.Results():
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for first result")
	}
	before := layout.Index(result.Rows)

	second := testTask(6)
	second.PreviousRows = result.Rows
	w.Submit(second)
	select {
	case result = <-w.Results():
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for second result")
	}
	after := layout.Index(result.Rows)
	for id, row := range before {
		assert.Equal(t, row, after[id], "segment %s changed rows", id)
	}
}

func TestWorker_StopsWithContext(t *testing.T) {
	w := NewWorker(WithCapacity(8, 8))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
