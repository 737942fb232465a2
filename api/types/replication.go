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

// Package types provides the wire types shared by the admin server and its
// client.
package types

// FilterSpec names a registered filter kind and its configuration.
type FilterSpec struct {
	Kind   string            `json:"kind"`
	Params map[string]string `json:"params,omitempty"`
}

// StartReplicationRequest is the body of POST /replications.
type StartReplicationRequest struct {
	Source       string      `json:"source"`
	Target       string      `json:"target"`
	Continuous   bool        `json:"continuous,omitempty"`
	CreateTarget bool        `json:"create_target,omitempty"`
	Filter       *FilterSpec `json:"filter,omitempty"`
}

// ReplicationTask is one record of the active-task listing. StartedOn is
// rendered human-readable in RFC 1123 form.
type ReplicationTask struct {
	ID            string `json:"id"`
	ReplicationID string `json:"replication_id"`
	Source        string `json:"source"`
	Target        string `json:"target"`
	Continuous    bool   `json:"continuous"`
	StartedOn     string `json:"started_on"`
	Status        string `json:"status"`
	DocsWritten   uint64 `json:"docs_written"`
	DocsSkipped   uint64 `json:"docs_skipped"`
	Conflicts     uint64 `json:"conflicts"`
	LastError     string `json:"last_error,omitempty"`
}

// ErrorResponse carries a structured failure over the admin surface.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
