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

package document

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ferry-db/ferry/pkg/errors"
)

// ErrInvalidRevision is returned when a revision marker cannot be parsed.
var ErrInvalidRevision = errors.InvalidArgument("invalid revision marker").WithCode("ErrInvalidRevision")

// revHashLen is the number of hex characters kept from the content digest.
const revHashLen = 32

// Revision is a content-addressed version marker for one state of a
// document, rendered as "{generation}-{hash}". The generation counts edits
// from the document's creation; the hash is derived from the body that
// produced this state.
type Revision struct {
	Gen  uint64
	Hash string
}

// ParseRevision parses a "{gen}-{hash}" marker.
func ParseRevision(s string) (Revision, error) {
	idx := strings.IndexByte(s, '-')
	if idx <= 0 || idx == len(s)-1 {
		return Revision{}, fmt.Errorf("parse revision %q: %w", s, ErrInvalidRevision)
	}

	gen, err := strconv.ParseUint(s[:idx], 10, 64)
	if err != nil || gen == 0 {
		return Revision{}, fmt.Errorf("parse revision %q: %w", s, ErrInvalidRevision)
	}

	return Revision{Gen: gen, Hash: s[idx+1:]}, nil
}

// String returns the wire representation of the revision.
func (r Revision) String() string {
	return fmt.Sprintf("%d-%s", r.Gen, r.Hash)
}

// IsZero returns true for the zero revision, i.e. a document that has never
// been written.
func (r Revision) IsZero() bool {
	return r.Gen == 0 && r.Hash == ""
}

// Equal returns true if both markers denote the same document state.
func (r Revision) Equal(other Revision) bool {
	return r.Gen == other.Gen && r.Hash == other.Hash
}

// DescendsFrom reports whether other is an ancestor of (or equal to) r.
// History is treated as linear: a strictly lower generation is an ancestor,
// and the same generation must carry the same hash.
func (r Revision) DescendsFrom(other Revision) bool {
	if other.IsZero() {
		return true
	}
	if other.Gen < r.Gen {
		return true
	}
	return r.Equal(other)
}

// ConflictsWith reports whether writing r over a store currently holding
// held would diverge the histories. Equal revisions are idempotent
// re-writes, not conflicts.
func (r Revision) ConflictsWith(held Revision) bool {
	if held.IsZero() || r.Equal(held) {
		return false
	}
	return !r.DescendsFrom(held)
}

// Next derives the revision that follows r for the given body.
func (r Revision) Next(body map[string]any) Revision {
	digest := sha256.New()
	digest.Write([]byte(r.String()))
	if body != nil {
		// Map iteration order does not matter: json.Marshal sorts keys.
		encoded, err := json.Marshal(body)
		if err == nil {
			digest.Write(encoded)
		}
	}

	return Revision{
		Gen:  r.Gen + 1,
		Hash: hex.EncodeToString(digest.Sum(nil))[:revHashLen],
	}
}
