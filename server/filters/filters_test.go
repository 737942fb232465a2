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

package filters_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ferry-db/ferry/pkg/document"
	"github.com/ferry-db/ferry/server/filters"
)

func entityDoc(docType, subtype string) *document.Document {
	body := map[string]any{}
	if docType != "" {
		body["type"] = docType
	}
	if subtype != "" {
		body["subtype"] = subtype
	}
	return document.New("d", body)
}

func accepts(t *testing.T, types string, doc *document.Document) bool {
	t.Helper()

	f, err := filters.Lookup(filters.KindEntityType)
	assert.NoError(t, err)

	ok, err := f.Accepts(doc, filters.Spec{
		Kind:   filters.KindEntityType,
		Params: map[string]string{"types": types},
	})
	assert.NoError(t, err)
	return ok
}

func TestEntityTypeFilter(t *testing.T) {
	t.Run("empty configuration accepts nothing test", func(t *testing.T) {
		assert.False(t, accepts(t, "", entityDoc("node", "article")))
		assert.False(t, accepts(t, " , ,.", entityDoc("node", "article")))

		f, err := filters.Lookup(filters.KindEntityType)
		assert.NoError(t, err)
		ok, err := f.Accepts(entityDoc("node", ""), filters.Spec{Kind: filters.KindEntityType})
		assert.NoError(t, err)
		assert.False(t, ok, "missing params accept nothing")
	})

	t.Run("bare type matches any subtype test", func(t *testing.T) {
		assert.True(t, accepts(t, "node", entityDoc("node", "article")))
		assert.True(t, accepts(t, "node", entityDoc("node", "page")))
		assert.True(t, accepts(t, "node", entityDoc("node", "")))
		assert.False(t, accepts(t, "node", entityDoc("comment", "")))
	})

	t.Run("type dot subtype matches the exact pair test", func(t *testing.T) {
		assert.True(t, accepts(t, "node.article", entityDoc("node", "article")))
		assert.False(t, accepts(t, "node.article", entityDoc("node", "page")))
		assert.False(t, accepts(t, "node.article", entityDoc("node", "")))
	})

	t.Run("token list accepts any member test", func(t *testing.T) {
		assert.True(t, accepts(t, "node.article,node.page", entityDoc("node", "article")))
		assert.True(t, accepts(t, "node.article,node.page", entityDoc("node", "page")))
		assert.False(t, accepts(t, "node.article,node.page", entityDoc("node", "story")))
	})

	t.Run("whitespace and stray dots are cleaned test", func(t *testing.T) {
		assert.True(t, accepts(t, " node . article , .comment.", entityDoc("node", "article")))
		assert.True(t, accepts(t, " node . article , .comment.", entityDoc("comment", "")))
	})

	t.Run("document without a type is never accepted test", func(t *testing.T) {
		assert.False(t, accepts(t, "node", entityDoc("", "")))
	})
}

func TestRegistry(t *testing.T) {
	t.Run("unknown kind is a configuration error test", func(t *testing.T) {
		_, err := filters.Lookup("no_such_filter")
		assert.ErrorIs(t, err, filters.ErrUnknownFilter)

		spec := &filters.Spec{Kind: "no_such_filter"}
		assert.ErrorIs(t, spec.Validate(), filters.ErrUnknownFilter)
	})

	t.Run("entity type filter is registered test", func(t *testing.T) {
		f, err := filters.Lookup(filters.KindEntityType)
		assert.NoError(t, err)
		assert.True(t, f.RequiresBody())

		spec := &filters.Spec{Kind: filters.KindEntityType, Params: map[string]string{"types": "node"}}
		assert.NoError(t, spec.Validate())
	})

	t.Run("malformed kind fails validation test", func(t *testing.T) {
		spec := &filters.Spec{Kind: "Not A Kind!"}
		assert.ErrorIs(t, spec.Validate(), filters.ErrUnknownFilter)
	})
}

func TestFingerprint(t *testing.T) {
	t.Run("param order does not matter test", func(t *testing.T) {
		a := &filters.Spec{Kind: "entity_type", Params: map[string]string{"a": "1", "b": "2"}}
		b := &filters.Spec{Kind: "entity_type", Params: map[string]string{"b": "2", "a": "1"}}
		assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	})

	t.Run("nil spec fingerprints empty test", func(t *testing.T) {
		var s *filters.Spec
		assert.Equal(t, "", s.Fingerprint())
	})
}
