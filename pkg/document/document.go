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

// Package document provides the document model replicated between stores.
package document

// Well-known body fields consulted by filters.
const (
	fieldType    = "type"
	fieldSubtype = "subtype"
)

// Document is one replicable unit. Seq is assigned by the store holding the
// document and is never carried verbatim to another store; each store keeps
// its own change history.
type Document struct {
	ID      string         `json:"id" bson:"id"`
	Rev     Revision       `json:"-" bson:"-"`
	Deleted bool           `json:"deleted,omitempty" bson:"deleted"`
	Seq     uint64         `json:"seq,omitempty" bson:"seq"`
	Body    map[string]any `json:"body,omitempty" bson:"body"`
}

// New creates a document with the given id and body at its first revision.
func New(id string, body map[string]any) *Document {
	return &Document{
		ID:   id,
		Rev:  Revision{}.Next(body),
		Body: body,
	}
}

// Type returns the entity type stored in the body, or "".
func (d *Document) Type() string {
	return d.stringField(fieldType)
}

// Subtype returns the entity subtype stored in the body, or "".
func (d *Document) Subtype() string {
	return d.stringField(fieldSubtype)
}

func (d *Document) stringField(name string) string {
	if d.Body == nil {
		return ""
	}
	if v, ok := d.Body[name].(string); ok {
		return v
	}
	return ""
}

// DeepCopy returns a copy of the document with its own body map. Nested
// values are shared; callers treat bodies as immutable once stored.
func (d *Document) DeepCopy() *Document {
	if d == nil {
		return nil
	}

	clone := *d
	if d.Body != nil {
		clone.Body = make(map[string]any, len(d.Body))
		for k, v := range d.Body {
			clone.Body[k] = v
		}
	}
	return &clone
}
