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

package replication_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ferry-db/ferry/pkg/document"
	"github.com/ferry-db/ferry/server/backend"
	"github.com/ferry-db/ferry/server/backend/background"
	memdb "github.com/ferry-db/ferry/server/backend/database/memory"
	"github.com/ferry-db/ferry/server/filters"
	"github.com/ferry-db/ferry/server/profiling/prometheus"
	"github.com/ferry-db/ferry/server/replication"
	"github.com/ferry-db/ferry/server/stores"
	memstore "github.com/ferry-db/ferry/server/stores/memory"
)

var storeSerial int

func newTestBackend(t *testing.T) *backend.Backend {
	t.Helper()

	metrics, err := prometheus.NewMetrics()
	assert.NoError(t, err)
	db, err := memdb.New()
	assert.NoError(t, err)

	be := &backend.Backend{
		Config: &backend.Config{
			BatchSize:           10,
			RetryMaxAttempts:    1,
			RetryBaseInterval:   "10ms",
			RetryMaxInterval:    "50ms",
			StoreConnectTimeout: "1s",
			StoreRequestTimeout: "2s",
		},
		Background: background.New(metrics),
		Metrics:    metrics,
		DB:         db,
	}
	t.Cleanup(func() {
		assert.NoError(t, be.Shutdown())
	})
	return be
}

// newStorePair registers two fresh shared in-process stores and returns
// their endpoints.
func newStorePair(t *testing.T) (stores.Endpoint, stores.Endpoint, *memstore.Store, *memstore.Store) {
	t.Helper()

	storeSerial++
	sourceName := fmt.Sprintf("engine-src-%d", storeSerial)
	targetName := fmt.Sprintf("engine-dst-%d", storeSerial)
	t.Cleanup(func() {
		memstore.Drop(sourceName)
		memstore.Drop(targetName)
	})

	source, err := memstore.Shared(sourceName)
	assert.NoError(t, err)
	target, err := memstore.Shared(targetName)
	assert.NoError(t, err)

	return stores.MustParseEndpoint("memory://" + sourceName),
		stores.MustParseEndpoint("memory://" + targetName),
		source, target
}

func waitUntilFinished(t *testing.T, registry *replication.Registry, taskID string) *replication.TaskInfo {
	t.Helper()

	assert.Eventually(t, func() bool {
		info, err := registry.Find(taskID)
		return err == nil && !info.Status.IsLive()
	}, 3*time.Second, 10*time.Millisecond)

	info, err := registry.Find(taskID)
	assert.NoError(t, err)
	return info
}

func TestReplicator(t *testing.T) {
	ctx := context.Background()

	t.Run("filtered one-shot replication test", func(t *testing.T) {
		be := newTestBackend(t)
		sourceEP, targetEP, source, target := newStorePair(t)

		assert.NoError(t, source.Put(ctx, document.New("a", map[string]any{
			"type": "node", "subtype": "article",
		})))
		assert.NoError(t, source.Put(ctx, document.New("b", map[string]any{
			"type": "node", "subtype": "page",
		})))

		replicator, err := replication.NewReplicator(be)
		assert.NoError(t, err)

		info, err := replicator.Start(ctx, replication.Task{
			Source: sourceEP,
			Target: targetEP,
			Filter: &filters.Spec{
				Kind:   filters.KindEntityType,
				Params: map[string]string{"types": "node.article"},
			},
		})
		assert.NoError(t, err)

		finished := waitUntilFinished(t, replicator.Registry(), info.ID)
		assert.Equal(t, replication.TaskCompleted, finished.Status)
		assert.Equal(t, uint64(1), finished.DocsWritten)
		assert.Equal(t, uint64(1), finished.DocsSkipped)

		replicated, err := target.Get(ctx, "a")
		assert.NoError(t, err)
		assert.Equal(t, "article", replicated.Subtype())
		_, err = target.Get(ctx, "b")
		assert.ErrorIs(t, err, stores.ErrDocumentNotFound)

		checkpoint, err := be.DB.FindCheckpoint(ctx, info.ReplicationID)
		assert.NoError(t, err)
		assert.Equal(t, uint64(2), checkpoint.LastSeq)
	})

	t.Run("restart resumes from checkpoint test", func(t *testing.T) {
		be := newTestBackend(t)
		sourceEP, targetEP, source, target := newStorePair(t)

		assert.NoError(t, source.Put(ctx, document.New("a", map[string]any{"type": "node"})))
		assert.NoError(t, source.Put(ctx, document.New("b", map[string]any{"type": "node"})))

		replicator, err := replication.NewReplicator(be)
		assert.NoError(t, err)
		task := replication.Task{Source: sourceEP, Target: targetEP}

		info, err := replicator.Start(ctx, task)
		assert.NoError(t, err)
		first := waitUntilFinished(t, replicator.Registry(), info.ID)
		assert.Equal(t, uint64(2), first.DocsWritten)

		assert.NoError(t, source.Put(ctx, document.New("c", map[string]any{"type": "node"})))

		info, err = replicator.Start(ctx, task)
		assert.NoError(t, err)
		second := waitUntilFinished(t, replicator.Registry(), info.ID)

		// only the new document crosses; the first batch is not re-read
		assert.Equal(t, replication.TaskCompleted, second.Status)
		assert.Equal(t, uint64(1), second.DocsWritten)

		checkpoint, err := be.DB.FindCheckpoint(ctx, info.ReplicationID)
		assert.NoError(t, err)
		assert.Equal(t, uint64(3), checkpoint.LastSeq)

		_, err = target.Get(ctx, "c")
		assert.NoError(t, err)
	})

	t.Run("replay without checkpoint is idempotent test", func(t *testing.T) {
		be := newTestBackend(t)
		sourceEP, targetEP, source, target := newStorePair(t)

		assert.NoError(t, source.Put(ctx, document.New("a", map[string]any{"type": "node"})))

		replicator, err := replication.NewReplicator(be)
		assert.NoError(t, err)
		task := replication.Task{Source: sourceEP, Target: targetEP}

		info, err := replicator.Start(ctx, task)
		assert.NoError(t, err)
		waitUntilFinished(t, replicator.Registry(), info.ID)

		seqBefore, err := target.LastSeq(ctx)
		assert.NoError(t, err)

		// simulate a crash before the checkpoint write
		assert.NoError(t, be.DB.RemoveCheckpoint(ctx, info.ReplicationID))

		info, err = replicator.Start(ctx, task)
		assert.NoError(t, err)
		replay := waitUntilFinished(t, replicator.Registry(), info.ID)
		assert.Equal(t, replication.TaskCompleted, replay.Status)

		// re-applied revisions do not burn target sequences
		seqAfter, err := target.LastSeq(ctx)
		assert.NoError(t, err)
		assert.Equal(t, seqBefore, seqAfter)
	})

	t.Run("divergent target revision is surfaced not resolved test", func(t *testing.T) {
		be := newTestBackend(t)
		sourceEP, targetEP, source, target := newStorePair(t)

		assert.NoError(t, source.Put(ctx, document.New("a", map[string]any{"owner": "source"})))
		assert.NoError(t, target.Put(ctx, document.New("a", map[string]any{"owner": "target"})))
		assert.NoError(t, source.Put(ctx, document.New("b", map[string]any{"owner": "source"})))

		replicator, err := replication.NewReplicator(be)
		assert.NoError(t, err)

		info, err := replicator.Start(ctx, replication.Task{Source: sourceEP, Target: targetEP})
		assert.NoError(t, err)
		finished := waitUntilFinished(t, replicator.Registry(), info.ID)

		// the conflicting document is counted and the task keeps going
		assert.Equal(t, replication.TaskCompleted, finished.Status)
		assert.Equal(t, uint64(1), finished.Conflicts)
		assert.Equal(t, uint64(1), finished.DocsWritten)

		kept, err := target.Get(ctx, "a")
		assert.NoError(t, err)
		assert.Equal(t, "target", kept.Body["owner"])
	})

	t.Run("deletions travel as tombstones test", func(t *testing.T) {
		be := newTestBackend(t)
		sourceEP, targetEP, source, target := newStorePair(t)

		assert.NoError(t, source.Put(ctx, document.New("a", map[string]any{"type": "node"})))

		replicator, err := replication.NewReplicator(be)
		assert.NoError(t, err)
		task := replication.Task{Source: sourceEP, Target: targetEP}

		info, err := replicator.Start(ctx, task)
		assert.NoError(t, err)
		waitUntilFinished(t, replicator.Registry(), info.ID)

		assert.NoError(t, source.DeleteMultiple(ctx, []string{"a"}))

		info, err = replicator.Start(ctx, task)
		assert.NoError(t, err)
		waitUntilFinished(t, replicator.Registry(), info.ID)

		gone, err := target.Get(ctx, "a")
		assert.NoError(t, err)
		assert.True(t, gone.Deleted)
	})

	t.Run("duplicate start is rejected while running test", func(t *testing.T) {
		be := newTestBackend(t)
		sourceEP, targetEP, _, _ := newStorePair(t)

		replicator, err := replication.NewReplicator(be)
		assert.NoError(t, err)
		task := replication.Task{Source: sourceEP, Target: targetEP, Continuous: true}

		info, err := replicator.Start(ctx, task)
		assert.NoError(t, err)

		_, err = replicator.Start(ctx, task)
		assert.ErrorIs(t, err, replication.ErrDuplicateTask)

		_, err = replicator.Stop(sourceEP, targetEP, true)
		assert.NoError(t, err)
		finished := waitUntilFinished(t, replicator.Registry(), info.ID)
		assert.Equal(t, replication.TaskStopped, finished.Status)
	})

	t.Run("continuous task follows new writes until stopped test", func(t *testing.T) {
		be := newTestBackend(t)
		sourceEP, targetEP, source, target := newStorePair(t)

		replicator, err := replication.NewReplicator(be)
		assert.NoError(t, err)

		info, err := replicator.Start(ctx, replication.Task{
			Source:     sourceEP,
			Target:     targetEP,
			Continuous: true,
		})
		assert.NoError(t, err)

		assert.NoError(t, source.Put(ctx, document.New("a", map[string]any{"type": "node"})))
		assert.Eventually(t, func() bool {
			_, err := target.Get(ctx, "a")
			return err == nil
		}, 3*time.Second, 10*time.Millisecond)

		assert.NoError(t, source.Put(ctx, document.New("b", map[string]any{"type": "node"})))
		assert.Eventually(t, func() bool {
			_, err := target.Get(ctx, "b")
			return err == nil
		}, 3*time.Second, 10*time.Millisecond)

		_, err = replicator.Stop(sourceEP, targetEP, true)
		assert.NoError(t, err)
		finished := waitUntilFinished(t, replicator.Registry(), info.ID)
		assert.Equal(t, replication.TaskStopped, finished.Status)
	})

	t.Run("unreachable endpoints are reported together test", func(t *testing.T) {
		be := newTestBackend(t)

		replicator, err := replication.NewReplicator(be)
		assert.NoError(t, err)

		_, err = replicator.Start(ctx, replication.Task{
			Source: stores.MustParseEndpoint("http://127.0.0.1:1/src"),
			Target: stores.MustParseEndpoint("http://127.0.0.1:1/dst"),
		})
		assert.ErrorIs(t, err, replication.ErrEndpointUnreachable)
		assert.Contains(t, err.Error(), "/src")
		assert.Contains(t, err.Error(), "/dst")

		infos, err := replicator.Active(nil, nil)
		assert.NoError(t, err)
		assert.Empty(t, infos)
	})

	t.Run("unknown filter kind never starts test", func(t *testing.T) {
		be := newTestBackend(t)
		sourceEP, targetEP, _, _ := newStorePair(t)

		replicator, err := replication.NewReplicator(be)
		assert.NoError(t, err)

		_, err = replicator.Start(ctx, replication.Task{
			Source: sourceEP,
			Target: targetEP,
			Filter: &filters.Spec{Kind: "no_such_filter"},
		})
		assert.ErrorIs(t, err, filters.ErrUnknownFilter)
	})

	t.Run("stop without a matching task fails test", func(t *testing.T) {
		be := newTestBackend(t)
		sourceEP, targetEP, _, _ := newStorePair(t)

		replicator, err := replication.NewReplicator(be)
		assert.NoError(t, err)

		_, err = replicator.Stop(sourceEP, targetEP, false)
		assert.ErrorIs(t, err, replication.ErrTaskNotFound)
	})
}
