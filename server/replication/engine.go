/*
 * Copyright 2026 The Ferry Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package replication

import (
	"context"
	goerrors "errors"
	"fmt"
	"io"
	gotime "time"

	"github.com/ferry-db/ferry/pkg/document"
	"github.com/ferry-db/ferry/pkg/retry"
	"github.com/ferry-db/ferry/server/backend/database"
	"github.com/ferry-db/ferry/server/filters"
	"github.com/ferry-db/ferry/server/logging"
	"github.com/ferry-db/ferry/server/profiling/prometheus"
	"github.com/ferry-db/ferry/server/stores"
)

const (
	// DefaultBatchSize is the number of change events applied to the target
	// between checkpoint writes when no batch size is configured.
	DefaultBatchSize = 100

	// DefaultLongpollTimeout bounds how long a continuous task waits on an
	// empty feed before re-checking for a stop request.
	DefaultLongpollTimeout = 30 * gotime.Second
)

// Options are the tuning knobs of an Engine. None of them affects the final
// target state, only batching and retry behavior.
type Options struct {
	BatchSize         int
	RetryMaxAttempts  uint64
	RetryBaseInterval gotime.Duration
	RetryMaxInterval  gotime.Duration
	LongpollTimeout   gotime.Duration
}

func (o *Options) ensureDefaultValue() {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.RetryBaseInterval <= 0 {
		o.RetryBaseInterval = 100 * gotime.Millisecond
	}
	if o.RetryMaxInterval <= 0 {
		o.RetryMaxInterval = 5 * gotime.Second
	}
	if o.LongpollTimeout <= 0 {
		o.LongpollTimeout = DefaultLongpollTimeout
	}
}

// Engine runs a single replication task: it streams the source's change
// feed from the last checkpoint, pushes qualifying revisions to the target
// in sequence order, and advances the checkpoint strictly after the writes
// of each batch.
type Engine struct {
	task     Task
	info     *TaskInfo
	source   stores.Store
	target   stores.Store
	db       database.Database
	registry *Registry
	metrics  *prometheus.Metrics
	options  Options

	filter *filterState

	// progress of the current run, flushed to the registry per batch.
	written   uint64
	skipped   uint64
	conflicts uint64

	conflictIDs []string

	// processedSeq is the highest sequence processed so far, including
	// skipped events. It becomes the checkpoint at the batch boundary.
	processedSeq  uint64
	checkpointSeq uint64
}

// filterState binds a registered filter implementation to the task's spec.
type filterState struct {
	impl filters.Filter
	spec filters.Spec
}

// NewEngine creates an Engine for a registered task. The filter spec must
// have been validated before registration.
func NewEngine(
	task Task,
	info *TaskInfo,
	source, target stores.Store,
	db database.Database,
	registry *Registry,
	metrics *prometheus.Metrics,
	options Options,
) (*Engine, error) {
	options.ensureDefaultValue()

	var fs *filterState
	if task.Filter != nil {
		impl, err := filters.Lookup(task.Filter.Kind)
		if err != nil {
			return nil, err
		}
		fs = &filterState{impl: impl, spec: *task.Filter}
	}

	return &Engine{
		task:     task,
		info:     info,
		source:   source,
		target:   target,
		db:       db,
		registry: registry,
		metrics:  metrics,
		options:  options,
		filter:   fs,
	}, nil
}

// Run executes the task until completion, stop, or an unrecoverable error.
// It owns the registry record's terminal status; the returned summary is
// valid in every outcome and reflects the progress that was checkpointed.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	logger := logging.From(ctx)
	replicationID := e.info.ReplicationID

	since, err := e.readCheckpoint(ctx)
	if err != nil {
		return e.fail(fmt.Errorf("read checkpoint of %s: %w", replicationID, err))
	}
	e.processedSeq = since
	e.checkpointSeq = since

	logger.Infof(
		"replication %s: %s -> %s, since %d",
		replicationID, e.task.Source, e.task.Target, since,
	)

	mode := stores.FeedNormal
	for {
		drained, err := e.streamWindow(ctx, mode)
		if err != nil {
			if isCanceled(err) {
				return e.stopped()
			}
			return e.fail(err)
		}
		if !drained {
			// stop observed at a batch boundary
			return e.stopped()
		}

		if !e.task.Continuous {
			return e.completed()
		}
		if e.registry.ShouldStop(e.info.ID) {
			return e.stopped()
		}
		mode = stores.FeedLongpoll
	}
}

// streamWindow opens one change feed window and processes it to the end.
// It returns false when a stop request was observed before the window was
// drained.
func (e *Engine) streamWindow(ctx context.Context, mode stores.FeedMode) (bool, error) {
	feedCtx := ctx
	if mode == stores.FeedLongpoll {
		var cancel context.CancelFunc
		feedCtx, cancel = context.WithTimeout(ctx, e.options.LongpollTimeout)
		defer cancel()

		// the wait races against stop: new data or cancellation, whichever
		// first
		go func() {
			select {
			case <-e.registry.StopSignal(e.info.ID):
				cancel()
			case <-feedCtx.Done():
			}
		}()
	}

	feed, err := e.source.ChangesSince(feedCtx, e.checkpointSeq, e.includeDocs(), mode)
	if err != nil {
		// a remote longpoll blocks at open; its expiry is an empty window
		if mode == stores.FeedLongpoll && goerrors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return !e.registry.ShouldStop(e.info.ID), nil
		}
		return false, fmt.Errorf("open feed since %d: %w", e.checkpointSeq, err)
	}
	defer func() {
		if err := feed.Close(); err != nil {
			logging.From(ctx).Warnf("close feed: %v", err)
		}
	}()

	inBatch := 0
	for {
		event, err := feed.Next(feedCtx)
		if err != nil {
			if goerrors.Is(err, io.EOF) {
				break
			}
			// an expired longpoll wait is an empty window, not a failure
			if mode == stores.FeedLongpoll && goerrors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				break
			}
			return false, fmt.Errorf("read feed: %w", err)
		}

		if err := e.processEvent(ctx, event); err != nil {
			return false, err
		}
		e.processedSeq = event.Seq

		inBatch++
		if inBatch >= e.options.BatchSize {
			if err := e.checkpoint(ctx); err != nil {
				return false, err
			}
			inBatch = 0
			if e.registry.ShouldStop(e.info.ID) {
				return false, nil
			}
		}
	}

	if err := e.checkpoint(ctx); err != nil {
		return false, err
	}
	return !e.registry.ShouldStop(e.info.ID) || !e.task.Continuous, nil
}

// processEvent applies one change event to the target. A filter rejection
// is a skip, a revision conflict is counted and surfaced, and both still
// advance the processed sequence.
func (e *Engine) processEvent(ctx context.Context, event *stores.ChangeEvent) error {
	accepted, err := e.accepts(event)
	if err != nil {
		return fmt.Errorf("filter %s at seq %d: %w", event.ID, event.Seq, err)
	}
	if !accepted {
		e.skipped++
		return nil
	}

	doc := event.Doc
	if doc == nil && !event.Deleted {
		doc, err = e.fetchSource(ctx, event.ID)
		if err != nil {
			return err
		}
	}
	if event.Deleted {
		doc = &document.Document{
			ID:      event.ID,
			Rev:     event.Rev,
			Deleted: true,
		}
	}

	err = retry.WithExponentialBackoff(
		ctx,
		e.options.RetryMaxAttempts,
		e.options.RetryBaseInterval,
		e.options.RetryMaxInterval,
		func() error {
			return e.target.Put(ctx, doc)
		},
	)
	if err != nil {
		if goerrors.Is(err, stores.ErrRevisionConflict) {
			e.conflicts++
			e.conflictIDs = append(e.conflictIDs, event.ID)
			logging.From(ctx).Warnf("conflict on %s at seq %d", event.ID, event.Seq)
			return nil
		}
		return fmt.Errorf("write %s to target: %w", event.ID, err)
	}

	e.written++
	return nil
}

// accepts runs the task's filter over the event. Tombstones carry no body,
// so a body-dependent filter rejects them rather than letting a deletion
// through unchecked.
func (e *Engine) accepts(event *stores.ChangeEvent) (bool, error) {
	if e.filter == nil {
		return true, nil
	}
	if event.Deleted && e.filter.impl.RequiresBody() {
		return false, nil
	}
	return e.filter.impl.Accepts(event.Doc, e.filter.spec)
}

// includeDocs reports whether the feed should carry full documents. Without
// a filter every event is written, so the body is always needed; a filter
// that decides on metadata alone lets the engine fetch only accepted
// documents.
func (e *Engine) includeDocs() bool {
	return e.filter == nil || e.filter.impl.RequiresBody()
}

func (e *Engine) fetchSource(ctx context.Context, id string) (*document.Document, error) {
	var doc *document.Document
	err := retry.WithExponentialBackoff(
		ctx,
		e.options.RetryMaxAttempts,
		e.options.RetryBaseInterval,
		e.options.RetryMaxInterval,
		func() error {
			var err error
			doc, err = e.source.Get(ctx, id)
			return err
		},
	)
	if err != nil {
		return nil, fmt.Errorf("fetch %s from source: %w", id, err)
	}
	return doc, nil
}

func (e *Engine) readCheckpoint(ctx context.Context) (uint64, error) {
	var since uint64
	err := retry.WithExponentialBackoff(
		ctx,
		e.options.RetryMaxAttempts,
		e.options.RetryBaseInterval,
		e.options.RetryMaxInterval,
		func() error {
			info, err := e.db.FindCheckpoint(ctx, e.info.ReplicationID)
			if err != nil {
				return err
			}
			since = info.LastSeq
			return nil
		},
	)
	if err != nil {
		if goerrors.Is(err, database.ErrCheckpointNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return since, nil
}

// checkpoint persists the highest processed sequence and flushes the batch
// counters. It runs strictly after the batch's target writes.
func (e *Engine) checkpoint(ctx context.Context) error {
	e.flushProgress()

	if e.processedSeq <= e.checkpointSeq {
		return nil
	}

	err := retry.WithExponentialBackoff(
		ctx,
		e.options.RetryMaxAttempts,
		e.options.RetryBaseInterval,
		e.options.RetryMaxInterval,
		func() error {
			_, err := e.db.UpsertCheckpoint(ctx, e.info.ReplicationID, e.processedSeq)
			return err
		},
	)
	if err != nil {
		return fmt.Errorf("save checkpoint %d of %s: %w", e.processedSeq, e.info.ReplicationID, err)
	}

	e.checkpointSeq = e.processedSeq
	e.metrics.SetCheckpointSeq(e.info.ReplicationID, e.processedSeq)
	return nil
}

// flushProgress moves the per-batch counters onto the registry record and
// the metrics, then resets them.
func (e *Engine) flushProgress() {
	if e.written == 0 && e.skipped == 0 && e.conflicts == 0 {
		return
	}
	if err := e.registry.AddProgress(e.info.ID, e.written, e.skipped, e.conflicts); err != nil {
		logging.DefaultLogger().Warnf("record progress of %s: %v", e.info.ID, err)
	}
	e.metrics.AddDocsWritten(e.info.ReplicationID, e.written)
	e.metrics.AddDocsSkipped(e.info.ReplicationID, e.skipped)
	e.metrics.AddConflicts(e.info.ReplicationID, e.conflicts)
	e.written, e.skipped, e.conflicts = 0, 0, 0
}

func (e *Engine) completed() (*Summary, error) {
	if err := e.registry.SetStatus(e.info.ID, TaskCompleted, ""); err != nil {
		logging.DefaultLogger().Warnf("complete task %s: %v", e.info.ID, err)
	}
	return e.summary(), nil
}

func (e *Engine) stopped() (*Summary, error) {
	e.flushProgress()
	if err := e.registry.SetStatus(e.info.ID, TaskStopped, ""); err != nil {
		logging.DefaultLogger().Warnf("stop task %s: %v", e.info.ID, err)
	}
	return e.summary(), nil
}

func (e *Engine) fail(cause error) (*Summary, error) {
	e.flushProgress()
	if err := e.registry.SetStatus(e.info.ID, TaskFailed, cause.Error()); err != nil {
		logging.DefaultLogger().Warnf("fail task %s: %v", e.info.ID, err)
	}
	return e.summary(), cause
}

// summary reads back the accumulated registry counters so restarts and
// batched flushes are both reflected.
func (e *Engine) summary() *Summary {
	s := &Summary{
		ReplicationID: e.info.ReplicationID,
		LastSeq:       e.checkpointSeq,
		ConflictIDs:   e.conflictIDs,
	}
	if info, err := e.registry.Find(e.info.ID); err == nil {
		s.DocsWritten = info.DocsWritten
		s.DocsSkipped = info.DocsSkipped
		s.Conflicts = info.Conflicts
	}
	return s
}

// isCanceled reports whether the error is the task context's cancellation,
// which is a cooperative shutdown rather than a failure.
func isCanceled(err error) bool {
	return goerrors.Is(err, context.Canceled)
}
