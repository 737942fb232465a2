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

// Package memory implements the checkpoint database using an in-memory
// database. Suitable for tests and single-process deployments that accept
// losing replication progress on restart.
package memory

import (
	"context"
	"fmt"
	gotime "time"

	"github.com/hashicorp/go-memdb"

	"github.com/ferry-db/ferry/server/backend/database"
)

// DB is an in-memory checkpoint database.
type DB struct {
	db *memdb.MemDB
}

// New returns a new in-memory checkpoint database.
func New() (*DB, error) {
	memDB, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	return &DB{
		db: memDB,
	}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return nil
}

// FindCheckpoint returns the checkpoint for the given replication identity.
func (d *DB) FindCheckpoint(
	_ context.Context,
	replicationID string,
) (*database.CheckpointInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblCheckpoints, "id", replicationID)
	if err != nil {
		return nil, fmt.Errorf("find checkpoint of %s: %w", replicationID, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("checkpoint of %s: %w", replicationID, database.ErrCheckpointNotFound)
	}

	return raw.(*database.CheckpointInfo).DeepCopy(), nil
}

// UpsertCheckpoint persists lastSeq for the given replication identity,
// keeping the stored sequence non-decreasing.
func (d *DB) UpsertCheckpoint(
	_ context.Context,
	replicationID string,
	lastSeq uint64,
) (*database.CheckpointInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblCheckpoints, "id", replicationID)
	if err != nil {
		return nil, fmt.Errorf("find checkpoint of %s: %w", replicationID, err)
	}

	info := &database.CheckpointInfo{
		ReplicationID: replicationID,
		LastSeq:       lastSeq,
		UpdatedAt:     gotime.Now(),
	}
	if raw != nil && raw.(*database.CheckpointInfo).LastSeq > lastSeq {
		info.LastSeq = raw.(*database.CheckpointInfo).LastSeq
	}

	if err := txn.Insert(tblCheckpoints, info); err != nil {
		return nil, fmt.Errorf("insert checkpoint of %s: %w", replicationID, err)
	}

	txn.Commit()
	return info.DeepCopy(), nil
}

// RemoveCheckpoint deletes the checkpoint of the given replication identity.
func (d *DB) RemoveCheckpoint(_ context.Context, replicationID string) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblCheckpoints, "id", replicationID)
	if err != nil {
		return fmt.Errorf("find checkpoint of %s: %w", replicationID, err)
	}
	if raw == nil {
		return nil
	}

	if err := txn.Delete(tblCheckpoints, raw); err != nil {
		return fmt.Errorf("delete checkpoint of %s: %w", replicationID, err)
	}

	txn.Commit()
	return nil
}
