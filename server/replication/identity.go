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
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"strconv"

	"github.com/ferry-db/ferry/server/filters"
	"github.com/ferry-db/ferry/server/stores"
)

// idPrefix versions the identity derivation. Bump it if the digest inputs
// ever change, so old checkpoints are not silently reused for a different
// meaning of "the same task".
const idPrefix = "fr1-"

// idHexLen is the number of digest hex characters kept in the identity.
const idHexLen = 40

// DeriveID computes the deterministic replication identity of a task: a
// stable digest of (source, target, filter, continuous). Restarting a task
// with identical inputs yields the same identity and therefore resumes from
// the same checkpoint. Endpoints enter the digest in normalized form, so
// credential rotation does not restart a replication from scratch.
//
// DeriveID is a pure function with no I/O; distinct inputs yield distinct
// identities with overwhelming probability.
func DeriveID(source, target stores.Endpoint, filter *filters.Spec, continuous bool) string {
	digest := sha256.New()
	writeField(digest, source.Normalized())
	writeField(digest, target.Normalized())
	writeField(digest, filter.Fingerprint())
	writeField(digest, strconv.FormatBool(continuous))

	return idPrefix + hex.EncodeToString(digest.Sum(nil))[:idHexLen]
}

// writeField length-prefixes each field so adjacent fields can never be
// confused for one another, e.g. ("ab", "c") vs ("a", "bc").
func writeField(h hash.Hash, field string) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(field)))
	h.Write(length[:])
	h.Write([]byte(field))
}
