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

// Package replication implements the replication engine: deterministic task
// identity, the streaming state machine driving a change feed through a
// filter onto the target store, checkpoint advancement and the registry of
// in-flight tasks.
package replication

import (
	"time"

	"github.com/ferry-db/ferry/server/filters"
	"github.com/ferry-db/ferry/server/stores"
)

// TaskStatus is the lifecycle state of a replication task.
type TaskStatus string

const (
	// TaskRunning means an engine is streaming changes for the task.
	TaskRunning TaskStatus = "running"

	// TaskStopping means a stop was requested; the engine will observe it at
	// the next batch boundary.
	TaskStopping TaskStatus = "stopping"

	// TaskStopped means the task was cancelled cooperatively.
	TaskStopped TaskStatus = "stopped"

	// TaskCompleted means a non-continuous task drained its feed.
	TaskCompleted TaskStatus = "completed"

	// TaskFailed means the task hit an unrecoverable error. Its last
	// persisted checkpoint is preserved for a future start.
	TaskFailed TaskStatus = "failed"
)

// IsLive returns true while an engine owns the task.
func (s TaskStatus) IsLive() bool {
	return s == TaskRunning || s == TaskStopping
}

// Task describes one replication to run.
type Task struct {
	Source       stores.Endpoint
	Target       stores.Endpoint
	Continuous   bool
	Filter       *filters.Spec
	CreateTarget bool
}

// ReplicationID returns the deterministic identity of the task.
func (t Task) ReplicationID() string {
	return DeriveID(t.Source, t.Target, t.Filter, t.Continuous)
}

// TaskInfo is the registry record of a task. It is owned by the registry;
// the engine mutates it only through registry methods.
type TaskInfo struct {
	ID            string
	ReplicationID string
	Source        stores.Endpoint
	Target        stores.Endpoint
	Continuous    bool
	StartedOn     time.Time
	Status        TaskStatus
	DocsWritten   uint64
	DocsSkipped   uint64
	Conflicts     uint64
	LastError     string
}

// DeepCopy returns a copy of this TaskInfo.
func (i *TaskInfo) DeepCopy() *TaskInfo {
	if i == nil {
		return nil
	}
	copied := *i
	return &copied
}

// Summary is the result of a finished (or stopped) replication run.
type Summary struct {
	ReplicationID string   `json:"replication_id"`
	DocsWritten   uint64   `json:"docs_written"`
	DocsSkipped   uint64   `json:"docs_skipped"`
	Conflicts     uint64   `json:"conflicts"`
	ConflictIDs   []string `json:"conflict_ids,omitempty"`
	LastSeq       uint64   `json:"last_seq"`
}
