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
	"fmt"
	"sort"
	"sync"
	gotime "time"

	"github.com/hashicorp/go-memdb"
	"github.com/rs/xid"

	"github.com/ferry-db/ferry/pkg/errors"
	"github.com/ferry-db/ferry/server/stores"
)

var (
	// ErrDuplicateTask is returned when a task with the same replication
	// identity is already running. At most one engine runs per identity.
	ErrDuplicateTask = errors.AlreadyExists("replication task already running").WithCode("ErrDuplicateTask")

	// ErrTaskNotFound is returned when no registry record matches.
	ErrTaskNotFound = errors.NotFound("replication task not found").WithCode("ErrTaskNotFound")
)

var tblTasks = "tasks"

var registrySchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblTasks: {
			Name: tblTasks,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"replication_id": {
					Name:    "replication_id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ReplicationID"},
				},
				"source": {
					Name:    "source",
					Indexer: &memdb.StringFieldIndex{Field: "SourceKey"},
				},
				"target": {
					Name:    "target",
					Indexer: &memdb.StringFieldIndex{Field: "TargetKey"},
				},
				"source_target": {
					Name: "source_target",
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "SourceKey"},
							&memdb.StringFieldIndex{Field: "TargetKey"},
						},
					},
				},
			},
		},
	},
}

// taskRecord wraps TaskInfo with the normalized endpoint keys the registry
// indexes on.
type taskRecord struct {
	ID            string
	ReplicationID string
	SourceKey     string
	TargetKey     string
	Info          *TaskInfo
}

// Registry tracks all in-flight replication tasks of the process. Records
// outlive their engine until explicitly cleared, so failures stay queryable.
type Registry struct {
	db *memdb.MemDB

	// stops holds the per-task channel closed by Stop, so a blocked
	// longpoll wait releases without waiting for its timeout.
	stopsMu sync.Mutex
	stops   map[string]chan struct{}
}

// NewRegistry creates an empty task registry.
func NewRegistry() (*Registry, error) {
	db, err := memdb.NewMemDB(registrySchema)
	if err != nil {
		return nil, fmt.Errorf("new registry memdb: %w", err)
	}
	return &Registry{
		db:    db,
		stops: make(map[string]chan struct{}),
	}, nil
}

// Register creates the record of a task about to run. It fails with
// ErrDuplicateTask when a live record with the same replication identity
// exists; a finished record for that identity is superseded.
func (r *Registry) Register(task Task) (*TaskInfo, error) {
	txn := r.db.Txn(true)
	defer txn.Abort()

	replicationID := task.ReplicationID()
	raw, err := txn.First(tblTasks, "replication_id", replicationID)
	if err != nil {
		return nil, fmt.Errorf("find task of %s: %w", replicationID, err)
	}
	if raw != nil {
		prev := raw.(*taskRecord)
		if prev.Info.Status.IsLive() {
			return nil, fmt.Errorf("replication %s: %w", replicationID, ErrDuplicateTask)
		}
		if err := txn.Delete(tblTasks, prev); err != nil {
			return nil, fmt.Errorf("supersede task of %s: %w", replicationID, err)
		}
		r.dropStop(prev.ID)
	}

	info := &TaskInfo{
		ID:            xid.New().String(),
		ReplicationID: replicationID,
		Source:        task.Source,
		Target:        task.Target,
		Continuous:    task.Continuous,
		StartedOn:     gotime.Now(),
		Status:        TaskRunning,
	}

	if err := txn.Insert(tblTasks, &taskRecord{
		ID:            info.ID,
		ReplicationID: replicationID,
		SourceKey:     task.Source.Normalized(),
		TargetKey:     task.Target.Normalized(),
		Info:          info,
	}); err != nil {
		return nil, fmt.Errorf("insert task of %s: %w", replicationID, err)
	}

	txn.Commit()

	r.stopsMu.Lock()
	r.stops[info.ID] = make(chan struct{})
	r.stopsMu.Unlock()

	return info.DeepCopy(), nil
}

// List returns the records matching the optional normalized source/target
// endpoints, oldest first.
func (r *Registry) List(source, target *stores.Endpoint) ([]*TaskInfo, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	var it memdb.ResultIterator
	var err error
	switch {
	case source != nil && target != nil:
		it, err = txn.Get(tblTasks, "source_target", source.Normalized(), target.Normalized())
	case source != nil:
		it, err = txn.Get(tblTasks, "source", source.Normalized())
	case target != nil:
		it, err = txn.Get(tblTasks, "target", target.Normalized())
	default:
		it, err = txn.Get(tblTasks, "id")
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	var infos []*TaskInfo
	for raw := it.Next(); raw != nil; raw = it.Next() {
		infos = append(infos, raw.(*taskRecord).Info.DeepCopy())
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StartedOn.Before(infos[j].StartedOn)
	})
	return infos, nil
}

// Find returns the record with the given task id.
func (r *Registry) Find(taskID string) (*TaskInfo, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblTasks, "id", taskID)
	if err != nil {
		return nil, fmt.Errorf("find task %s: %w", taskID, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
	}
	return raw.(*taskRecord).Info.DeepCopy(), nil
}

// FindByReplicationID returns the record with the given replication
// identity.
func (r *Registry) FindByReplicationID(replicationID string) (*TaskInfo, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblTasks, "replication_id", replicationID)
	if err != nil {
		return nil, fmt.Errorf("find task of %s: %w", replicationID, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("replication %s: %w", replicationID, ErrTaskNotFound)
	}
	return raw.(*taskRecord).Info.DeepCopy(), nil
}

// Stop requests cooperative cancellation of a live task. It returns false
// when the task is unknown or already finished. The engine observes the
// stopping status at its next safe point.
func (r *Registry) Stop(taskID string) bool {
	updated := false
	_ = r.mutate(taskID, func(info *TaskInfo) {
		if info.Status == TaskRunning {
			info.Status = TaskStopping
			updated = true
		}
	})

	if updated {
		r.stopsMu.Lock()
		if ch, ok := r.stops[taskID]; ok {
			close(ch)
		}
		r.stopsMu.Unlock()
	}
	return updated
}

// StopSignal returns the channel closed when Stop is called for the task.
// Waiting on it from an unknown task blocks forever.
func (r *Registry) StopSignal(taskID string) <-chan struct{} {
	r.stopsMu.Lock()
	defer r.stopsMu.Unlock()
	return r.stops[taskID]
}

func (r *Registry) dropStop(taskID string) {
	r.stopsMu.Lock()
	delete(r.stops, taskID)
	r.stopsMu.Unlock()
}

// ShouldStop reports whether cancellation was requested for the task.
func (r *Registry) ShouldStop(taskID string) bool {
	info, err := r.Find(taskID)
	if err != nil {
		return true
	}
	return info.Status != TaskRunning
}

// SetStatus moves the task to a final or intermediate status. lastError is
// kept verbatim for the active-task listing.
func (r *Registry) SetStatus(taskID string, status TaskStatus, lastError string) error {
	return r.mutate(taskID, func(info *TaskInfo) {
		info.Status = status
		if lastError != "" {
			info.LastError = lastError
		}
	})
}

// AddProgress accumulates the engine's per-batch counters on the record.
func (r *Registry) AddProgress(taskID string, written, skipped, conflicts uint64) error {
	return r.mutate(taskID, func(info *TaskInfo) {
		info.DocsWritten += written
		info.DocsSkipped += skipped
		info.Conflicts += conflicts
	})
}

// Clear removes a finished record from the registry. Live tasks cannot be
// cleared; stop them first.
func (r *Registry) Clear(taskID string) (bool, error) {
	txn := r.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblTasks, "id", taskID)
	if err != nil {
		return false, fmt.Errorf("find task %s: %w", taskID, err)
	}
	if raw == nil {
		return false, nil
	}
	if raw.(*taskRecord).Info.Status.IsLive() {
		return false, fmt.Errorf("task %s is live: %w", taskID, errors.FailedPrecond("task still running").WithCode("ErrTaskLive"))
	}

	if err := txn.Delete(tblTasks, raw); err != nil {
		return false, fmt.Errorf("delete task %s: %w", taskID, err)
	}
	txn.Commit()
	r.dropStop(taskID)
	return true, nil
}

// mutate applies fn to the record's TaskInfo inside one write transaction.
func (r *Registry) mutate(taskID string, fn func(info *TaskInfo)) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblTasks, "id", taskID)
	if err != nil {
		return fmt.Errorf("find task %s: %w", taskID, err)
	}
	if raw == nil {
		return fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
	}

	prev := raw.(*taskRecord)
	info := prev.Info.DeepCopy()
	fn(info)

	if err := txn.Insert(tblTasks, &taskRecord{
		ID:            prev.ID,
		ReplicationID: prev.ReplicationID,
		SourceKey:     prev.SourceKey,
		TargetKey:     prev.TargetKey,
		Info:          info,
	}); err != nil {
		return fmt.Errorf("update task %s: %w", taskID, err)
	}

	txn.Commit()
	return nil
}
