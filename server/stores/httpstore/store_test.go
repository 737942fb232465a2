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

package httpstore_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ferry-db/ferry/pkg/document"
	"github.com/ferry-db/ferry/pkg/errors"
	"github.com/ferry-db/ferry/server/stores"
	"github.com/ferry-db/ferry/server/stores/httpstore"
)

func dialTest(t *testing.T, srv *httptest.Server, userinfo string) *httpstore.Store {
	t.Helper()

	u, err := url.Parse(srv.URL)
	assert.NoError(t, err)
	raw := fmt.Sprintf("http://%s%s/docs", userinfo, u.Host)

	store, err := httpstore.Dial(stores.MustParseEndpoint(raw), nil)
	assert.NoError(t, err)
	return store
}

func TestStore(t *testing.T) {
	t.Run("get decodes wire document test", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/docs/a", r.URL.Path)
			fmt.Fprint(w, `{"_id":"a","_rev":"2-abc","type":"node","subtype":"article"}`)
		}))
		defer srv.Close()

		doc, err := dialTest(t, srv, "").Get(context.Background(), "a")
		assert.NoError(t, err)
		assert.Equal(t, "a", doc.ID)
		assert.Equal(t, uint64(2), doc.Rev.Gen)
		assert.Equal(t, "node", doc.Type())
		assert.Equal(t, "article", doc.Subtype())
	})

	t.Run("get missing document test", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := dialTest(t, srv, "").Get(context.Background(), "missing")
		assert.ErrorIs(t, err, stores.ErrDocumentNotFound)
	})

	t.Run("put preserves revision and maps conflict test", func(t *testing.T) {
		var gotPath, gotQuery, gotBody string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotQuery = r.URL.RawQuery
			body, _ := io.ReadAll(r.Body)
			gotBody = string(body)
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		doc := document.New("a", map[string]any{"type": "node"})
		assert.NoError(t, dialTest(t, srv, "").Put(context.Background(), doc))
		assert.Equal(t, "/docs/a", gotPath)
		assert.Equal(t, "new_edits=false", gotQuery)
		assert.Contains(t, gotBody, `"_rev":"`+doc.Rev.String()+`"`)

		conflictSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
		}))
		defer conflictSrv.Close()

		err := dialTest(t, conflictSrv, "").Put(context.Background(), doc)
		assert.ErrorIs(t, err, stores.ErrRevisionConflict)
	})

	t.Run("basic auth from endpoint userinfo test", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "replicator", user)
			assert.Equal(t, "secret", pass)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		assert.NoError(t, dialTest(t, srv, "replicator:secret@").Ping(context.Background()))
	})

	t.Run("changes feed parses window test", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/docs/_changes", r.URL.Path)
			assert.Equal(t, "5", r.URL.Query().Get("since"))
			assert.Equal(t, "true", r.URL.Query().Get("include_docs"))
			assert.Equal(t, "normal", r.URL.Query().Get("feed"))
			fmt.Fprint(w, `{"results":[
				{"seq":6,"id":"a","changes":[{"rev":"1-x"}],"doc":{"_id":"a","_rev":"1-x","type":"node"}},
				{"seq":"7-g1AAAA","id":"b","changes":[{"rev":"2-y"}],"deleted":true}
			],"last_seq":7}`)
		}))
		defer srv.Close()

		feed, err := dialTest(t, srv, "").ChangesSince(context.Background(), 5, true, stores.FeedNormal)
		assert.NoError(t, err)

		first, err := feed.Next(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, uint64(6), first.Seq)
		assert.Equal(t, "a", first.ID)
		assert.NotNil(t, first.Doc)
		assert.Equal(t, "node", first.Doc.Type())

		second, err := feed.Next(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, uint64(7), second.Seq, "composite seq strings are accepted")
		assert.True(t, second.Deleted)
		assert.Nil(t, second.Doc)

		_, err = feed.Next(context.Background())
		assert.Equal(t, io.EOF, err)
		assert.NoError(t, feed.Close())
	})

	t.Run("server errors are transient test", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := dialTest(t, srv, "").Get(context.Background(), "a")
		assert.True(t, errors.IsRetryable(err))
	})

	t.Run("unreachable endpoint test", func(t *testing.T) {
		store, err := httpstore.Dial(
			stores.MustParseEndpoint("http://127.0.0.1:1/docs"),
			&httpstore.Config{ConnectTimeout: "100ms", RequestTimeout: "200ms"},
		)
		assert.NoError(t, err)

		err = store.Ping(context.Background())
		assert.True(t, errors.IsStatus(err, errors.ErrCodeUnavailable))
		assert.Equal(t, "ErrEndpointUnreachable", errors.CodeOf(err))
	})

	t.Run("create target is idempotent test", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusCreated)
				return
			}
			w.WriteHeader(http.StatusPreconditionFailed)
		}))
		defer srv.Close()

		store := dialTest(t, srv, "")
		assert.NoError(t, store.Create(context.Background()))
		assert.NoError(t, store.Create(context.Background()))
	})
}
