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
	"fmt"
	"strings"

	"github.com/ferry-db/ferry/pkg/errors"
	"github.com/ferry-db/ferry/server/backend"
	"github.com/ferry-db/ferry/server/logging"
	"github.com/ferry-db/ferry/server/stores"
)

// ErrEndpointUnreachable is returned when a pre-flight probe fails. The
// message lists every unreachable URL, not just the first.
var ErrEndpointUnreachable = errors.Unavailable("endpoint unreachable").WithCode("ErrEndpointUnreachable")

// Replicator is the task-facing service of the replication engine: it
// validates and probes a task's endpoints, registers the task, and runs one
// Engine per registered task on a background goroutine.
type Replicator struct {
	backend  *backend.Backend
	registry *Registry
}

// NewReplicator creates a Replicator backed by the given backend.
func NewReplicator(be *backend.Backend) (*Replicator, error) {
	registry, err := NewRegistry()
	if err != nil {
		return nil, err
	}
	return &Replicator{
		backend:  be,
		registry: registry,
	}, nil
}

// Registry exposes the active task registry.
func (r *Replicator) Registry() *Registry {
	return r.registry
}

// Start validates, registers, and launches the given task. It returns the
// registry record once the engine is running; the engine itself finishes in
// the background.
func (r *Replicator) Start(ctx context.Context, task Task) (*TaskInfo, error) {
	if task.Filter != nil {
		if err := task.Filter.Validate(); err != nil {
			return nil, err
		}
	}

	source, target, err := r.openPair(ctx, task)
	if err != nil {
		return nil, err
	}

	info, err := r.registry.Register(task)
	if err != nil {
		r.closeStore(task.Source, source)
		r.closeStore(task.Target, target)
		return nil, err
	}

	conf := r.backend.Config
	engine, err := NewEngine(task, info, source, target, r.backend.DB, r.registry, r.backend.Metrics, Options{
		BatchSize:         conf.BatchSize,
		RetryMaxAttempts:  uint64(conf.RetryMaxAttempts),
		RetryBaseInterval: conf.ParseRetryBaseInterval(),
		RetryMaxInterval:  conf.ParseRetryMaxInterval(),
	})
	if err != nil {
		r.closeStore(task.Source, source)
		r.closeStore(task.Target, target)
		if setErr := r.registry.SetStatus(info.ID, TaskFailed, err.Error()); setErr != nil {
			logging.DefaultLogger().Warnf("fail task %s: %v", info.ID, setErr)
		}
		return nil, err
	}

	r.backend.Metrics.AddActiveTask()
	r.backend.Background.AttachGoroutine(func(ctx context.Context) {
		defer r.closeStore(task.Source, source)
		defer r.closeStore(task.Target, target)

		summary, err := engine.Run(ctx)
		status := r.finalStatus(info.ID)
		r.backend.Metrics.RemoveActiveTask(string(status))

		logger := logging.From(ctx)
		if err != nil {
			logger.Warnf("replication %s failed: %v", info.ReplicationID, err)
			return
		}
		logger.Infof(
			"replication %s %s: written %d, skipped %d, conflicts %d, last seq %d",
			summary.ReplicationID, status,
			summary.DocsWritten, summary.DocsSkipped, summary.Conflicts, summary.LastSeq,
		)
	}, "replication")

	return info, nil
}

// Stop requests cooperative cancellation of the live task matching the
// given endpoints and continuity, ignoring credentials. It returns the
// record that was asked to stop.
func (r *Replicator) Stop(source, target stores.Endpoint, continuous bool) (*TaskInfo, error) {
	infos, err := r.registry.List(&source, &target)
	if err != nil {
		return nil, err
	}

	for _, info := range infos {
		if info.Continuous != continuous || !info.Status.IsLive() {
			continue
		}
		r.registry.Stop(info.ID)
		return r.registry.Find(info.ID)
	}

	return nil, fmt.Errorf("no running task for %s -> %s: %w", source, target, ErrTaskNotFound)
}

// Active lists the registry records matching the optional endpoints. When
// both endpoints are given the result is the single matching record or
// empty.
func (r *Replicator) Active(source, target *stores.Endpoint) ([]*TaskInfo, error) {
	return r.registry.List(source, target)
}

// Clear removes a finished task record from the registry.
func (r *Replicator) Clear(taskID string) (bool, error) {
	return r.registry.Clear(taskID)
}

// StopAll requests cancellation of every live task. Used on server
// shutdown so background engines drain promptly.
func (r *Replicator) StopAll() {
	infos, err := r.registry.List(nil, nil)
	if err != nil {
		logging.DefaultLogger().Warnf("list tasks: %v", err)
		return
	}
	for _, info := range infos {
		if info.Status == TaskRunning {
			r.registry.Stop(info.ID)
		}
	}
}

// openPair opens both of the task's stores and probes them independently,
// reporting all unreachable endpoints together. The target store is created
// first when the task asks for it.
func (r *Replicator) openPair(ctx context.Context, task Task) (stores.Store, stores.Store, error) {
	source, sourceErr := r.openProbed(ctx, task.Source, false)
	target, targetErr := r.openProbed(ctx, task.Target, task.CreateTarget)

	if sourceErr != nil || targetErr != nil {
		r.closeStore(task.Source, source)
		r.closeStore(task.Target, target)

		var unreachable []string
		if sourceErr != nil {
			unreachable = append(unreachable, task.Source.String())
		}
		if targetErr != nil {
			unreachable = append(unreachable, task.Target.String())
		}
		return nil, nil, fmt.Errorf("probe %s: %w", strings.Join(unreachable, ", "), ErrEndpointUnreachable)
	}

	return source, target, nil
}

func (r *Replicator) openProbed(ctx context.Context, endpoint stores.Endpoint, create bool) (stores.Store, error) {
	store, err := r.backend.OpenStore(endpoint)
	if err != nil {
		return nil, err
	}

	if create {
		if creatable, ok := store.(stores.Creatable); ok {
			if err := creatable.Create(ctx); err != nil {
				r.closeStore(endpoint, store)
				return nil, err
			}
		}
	}

	if err := store.Ping(ctx); err != nil {
		r.closeStore(endpoint, store)
		return nil, err
	}
	return store, nil
}

// closeStore releases a store adapter. In-process stores are shared by name
// across tasks and stay open for the life of the server.
func (r *Replicator) closeStore(endpoint stores.Endpoint, store stores.Store) {
	if store == nil || endpoint.Scheme() == stores.SchemeMemory {
		return
	}
	if err := store.Close(); err != nil {
		logging.DefaultLogger().Warnf("close store %s: %v", endpoint, err)
	}
}

func (r *Replicator) finalStatus(taskID string) TaskStatus {
	info, err := r.registry.Find(taskID)
	if err != nil {
		return TaskStopped
	}
	return info.Status
}
