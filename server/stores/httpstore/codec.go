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

package httpstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ferry-db/ferry/pkg/document"
)

// Wire fields of the CouchDB-style document representation. Underscored
// members are protocol metadata; everything else is document body.
const (
	wireID      = "_id"
	wireRev     = "_rev"
	wireDeleted = "_deleted"
)

// encodeDocument renders a document into its wire representation.
func encodeDocument(doc *document.Document) ([]byte, error) {
	wire := make(map[string]any, len(doc.Body)+3)
	for k, v := range doc.Body {
		if !strings.HasPrefix(k, "_") {
			wire[k] = v
		}
	}
	wire[wireID] = doc.ID
	wire[wireRev] = doc.Rev.String()
	if doc.Deleted {
		wire[wireDeleted] = true
	}

	encoded, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encode document %s: %w", doc.ID, err)
	}
	return encoded, nil
}

// decodeDocument parses a wire representation into a document.
func decodeDocument(data []byte) (*document.Document, error) {
	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return documentFromWire(wire)
}

func documentFromWire(wire map[string]any) (*document.Document, error) {
	id, _ := wire[wireID].(string)
	if id == "" {
		return nil, fmt.Errorf("decode document: missing %s", wireID)
	}

	revStr, _ := wire[wireRev].(string)
	rev, err := document.ParseRevision(revStr)
	if err != nil {
		return nil, err
	}

	deleted, _ := wire[wireDeleted].(bool)

	body := make(map[string]any)
	for k, v := range wire {
		if !strings.HasPrefix(k, "_") {
			body[k] = v
		}
	}
	if len(body) == 0 {
		body = nil
	}

	return &document.Document{
		ID:      id,
		Rev:     rev,
		Deleted: deleted,
		Body:    body,
	}, nil
}

// coerceSeq accepts the sequence encodings remote stores use: a JSON
// number, a numeric string, or a "N-opaque" composite.
func coerceSeq(v any) (uint64, error) {
	switch seq := v.(type) {
	case float64:
		return uint64(seq), nil
	case json.Number:
		n, err := seq.Int64()
		if err != nil {
			return 0, fmt.Errorf("coerce seq %q: %w", seq, err)
		}
		return uint64(n), nil
	case string:
		head := seq
		if idx := strings.IndexByte(seq, '-'); idx > 0 {
			head = seq[:idx]
		}
		n, err := strconv.ParseUint(head, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("coerce seq %q: %w", seq, err)
		}
		return n, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("coerce seq: unsupported type %T", v)
	}
}
