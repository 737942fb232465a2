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

package document_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ferry-db/ferry/pkg/document"
)

func TestRevision(t *testing.T) {
	t.Run("parse and render round trip test", func(t *testing.T) {
		rev, err := document.ParseRevision("3-abcdef")
		assert.NoError(t, err)
		assert.Equal(t, uint64(3), rev.Gen)
		assert.Equal(t, "abcdef", rev.Hash)
		assert.Equal(t, "3-abcdef", rev.String())
	})

	t.Run("malformed markers are rejected test", func(t *testing.T) {
		for _, s := range []string{"", "3", "-abc", "3-", "0-abc", "x-abc"} {
			_, err := document.ParseRevision(s)
			assert.ErrorIs(t, err, document.ErrInvalidRevision, s)
		}
	})

	t.Run("next revision bumps generation test", func(t *testing.T) {
		first := document.Revision{}.Next(map[string]any{"type": "node"})
		second := first.Next(map[string]any{"type": "node", "title": "hi"})
		assert.Equal(t, uint64(1), first.Gen)
		assert.Equal(t, uint64(2), second.Gen)
		assert.NotEqual(t, first.Hash, second.Hash)
	})

	t.Run("conflict detection test", func(t *testing.T) {
		held := document.Revision{Gen: 2, Hash: "aa"}

		// Same revision replayed: idempotent, not a conflict.
		assert.False(t, document.Revision{Gen: 2, Hash: "aa"}.ConflictsWith(held))
		// Newer generation descends from the held one.
		assert.False(t, document.Revision{Gen: 3, Hash: "bb"}.ConflictsWith(held))
		// Same generation, different content: diverged.
		assert.True(t, document.Revision{Gen: 2, Hash: "bb"}.ConflictsWith(held))
		// Older generation than the held one: incoming is stale.
		assert.True(t, document.Revision{Gen: 1, Hash: "cc"}.ConflictsWith(held))
		// Nothing held yet: never a conflict.
		assert.False(t, document.Revision{Gen: 1, Hash: "cc"}.ConflictsWith(document.Revision{}))
	})
}

func TestDocument(t *testing.T) {
	t.Run("type and subtype accessors test", func(t *testing.T) {
		doc := document.New("a", map[string]any{"type": "node", "subtype": "article"})
		assert.Equal(t, "node", doc.Type())
		assert.Equal(t, "article", doc.Subtype())
		assert.Equal(t, uint64(1), doc.Rev.Gen)

		empty := document.New("b", nil)
		assert.Equal(t, "", empty.Type())
		assert.Equal(t, "", empty.Subtype())
	})

	t.Run("deep copy does not alias the body test", func(t *testing.T) {
		doc := document.New("a", map[string]any{"type": "node"})
		clone := doc.DeepCopy()
		clone.Body["type"] = "comment"
		assert.Equal(t, "node", doc.Type())
		assert.Equal(t, "comment", clone.Type())
	})
}
