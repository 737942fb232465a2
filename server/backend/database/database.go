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

// Package database provides the persistence interface for replication
// checkpoints.
package database

import (
	"context"

	"github.com/ferry-db/ferry/pkg/errors"
)

var (
	// ErrCheckpointNotFound is returned when no checkpoint exists for a
	// replication identity. Callers treat it as "start from sequence 0".
	ErrCheckpointNotFound = errors.NotFound("checkpoint not found").WithCode("ErrCheckpointNotFound")

	// ErrCheckpointStoreDown is returned when the checkpoint store cannot be
	// reached. Fatal for the running task; previously persisted checkpoints
	// stay intact.
	ErrCheckpointStoreDown = errors.Unavailable("checkpoint store unavailable").WithCode("ErrCheckpointStoreDown")
)

// Database reads and saves replication checkpoints. Implementations must be
// safe for concurrent use: checkpoint writes are keyed upserts, one row per
// replication identity.
type Database interface {
	// Close all resources of this database.
	Close() error

	// FindCheckpoint returns the checkpoint for the given replication
	// identity.
	FindCheckpoint(ctx context.Context, replicationID string) (*CheckpointInfo, error)

	// UpsertCheckpoint persists lastSeq for the given replication identity.
	// The stored sequence never decreases: an upsert with a smaller value
	// keeps the existing one.
	UpsertCheckpoint(ctx context.Context, replicationID string, lastSeq uint64) (*CheckpointInfo, error)

	// RemoveCheckpoint deletes the checkpoint of the given replication
	// identity. Removing a missing checkpoint is not an error.
	RemoveCheckpoint(ctx context.Context, replicationID string) error
}
