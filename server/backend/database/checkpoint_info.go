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

package database

import "time"

// CheckpointInfo is the stored progress of one replication identity: the
// last source sequence whose batch was fully applied to the target.
type CheckpointInfo struct {
	ReplicationID string    `bson:"replication_id"`
	LastSeq       uint64    `bson:"last_seq"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

// DeepCopy returns a copy of this CheckpointInfo.
func (i *CheckpointInfo) DeepCopy() *CheckpointInfo {
	if i == nil {
		return nil
	}
	copied := *i
	return &copied
}
