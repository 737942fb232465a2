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

package memory_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ferry-db/ferry/pkg/document"
	"github.com/ferry-db/ferry/server/stores"
	"github.com/ferry-db/ferry/server/stores/memory"
)

func drain(t *testing.T, feed stores.ChangeFeed) []*stores.ChangeEvent {
	t.Helper()

	var events []*stores.ChangeEvent
	for {
		event, err := feed.Next(context.Background())
		if err == io.EOF {
			break
		}
		assert.NoError(t, err)
		events = append(events, event)
	}
	assert.NoError(t, feed.Close())
	return events
}

func TestStore(t *testing.T) {
	t.Run("put assigns ascending sequences test", func(t *testing.T) {
		store, err := memory.New()
		assert.NoError(t, err)

		ctx := context.Background()
		assert.NoError(t, store.Put(ctx, document.New("a", map[string]any{"type": "node"})))
		assert.NoError(t, store.Put(ctx, document.New("b", map[string]any{"type": "node"})))

		a, err := store.Get(ctx, "a")
		assert.NoError(t, err)
		b, err := store.Get(ctx, "b")
		assert.NoError(t, err)
		assert.Equal(t, uint64(1), a.Seq)
		assert.Equal(t, uint64(2), b.Seq)

		last, err := store.LastSeq(ctx)
		assert.NoError(t, err)
		assert.Equal(t, uint64(2), last)
	})

	t.Run("get unknown document test", func(t *testing.T) {
		store, err := memory.New()
		assert.NoError(t, err)

		_, err = store.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, stores.ErrDocumentNotFound)
	})

	t.Run("idempotent replay of the same revision test", func(t *testing.T) {
		store, err := memory.New()
		assert.NoError(t, err)

		ctx := context.Background()
		doc := document.New("a", map[string]any{"type": "node"})
		assert.NoError(t, store.Put(ctx, doc))
		assert.NoError(t, store.Put(ctx, doc))

		last, err := store.LastSeq(ctx)
		assert.NoError(t, err)
		assert.Equal(t, uint64(1), last, "replay must not burn a sequence")
	})

	t.Run("diverged revision conflicts test", func(t *testing.T) {
		store, err := memory.New()
		assert.NoError(t, err)

		ctx := context.Background()
		doc := document.New("a", map[string]any{"title": "one"})
		assert.NoError(t, store.Put(ctx, doc))

		diverged := document.New("a", map[string]any{"title": "two"})
		err = store.Put(ctx, diverged)
		assert.ErrorIs(t, err, stores.ErrRevisionConflict)
	})

	t.Run("update with descending revision succeeds test", func(t *testing.T) {
		store, err := memory.New()
		assert.NoError(t, err)

		ctx := context.Background()
		doc := document.New("a", map[string]any{"title": "one"})
		assert.NoError(t, store.Put(ctx, doc))

		updated := doc.DeepCopy()
		updated.Body["title"] = "two"
		updated.Rev = doc.Rev.Next(updated.Body)
		assert.NoError(t, store.Put(ctx, updated))

		got, err := store.Get(ctx, "a")
		assert.NoError(t, err)
		assert.Equal(t, updated.Rev, got.Rev)
		assert.Equal(t, uint64(2), got.Seq)
	})

	t.Run("delete writes tombstones test", func(t *testing.T) {
		store, err := memory.New()
		assert.NoError(t, err)

		ctx := context.Background()
		assert.NoError(t, store.Put(ctx, document.New("a", nil)))
		assert.NoError(t, store.Put(ctx, document.New("b", nil)))
		assert.NoError(t, store.DeleteMultiple(ctx, []string{"a", "missing"}))

		got, err := store.Get(ctx, "a")
		assert.NoError(t, err)
		assert.True(t, got.Deleted)
		assert.Equal(t, uint64(3), got.Seq)
		assert.Equal(t, uint64(2), got.Rev.Gen)
	})
}

func TestChangeFeed(t *testing.T) {
	t.Run("normal feed is ordered and finite test", func(t *testing.T) {
		store, err := memory.New()
		assert.NoError(t, err)

		ctx := context.Background()
		assert.NoError(t, store.Put(ctx, document.New("a", map[string]any{"type": "node"})))
		assert.NoError(t, store.Put(ctx, document.New("b", map[string]any{"type": "node"})))
		assert.NoError(t, store.Put(ctx, document.New("c", map[string]any{"type": "node"})))

		feed, err := store.ChangesSince(ctx, 0, false, stores.FeedNormal)
		assert.NoError(t, err)
		events := drain(t, feed)

		assert.Len(t, events, 3)
		for i, event := range events {
			assert.Equal(t, uint64(i+1), event.Seq)
			assert.Nil(t, event.Doc, "include_docs off omits the body")
		}
	})

	t.Run("since skips already seen changes test", func(t *testing.T) {
		store, err := memory.New()
		assert.NoError(t, err)

		ctx := context.Background()
		assert.NoError(t, store.Put(ctx, document.New("a", nil)))
		assert.NoError(t, store.Put(ctx, document.New("b", nil)))

		feed, err := store.ChangesSince(ctx, 1, true, stores.FeedNormal)
		assert.NoError(t, err)
		events := drain(t, feed)

		assert.Len(t, events, 1)
		assert.Equal(t, "b", events[0].ID)
		assert.NotNil(t, events[0].Doc)
	})

	t.Run("updated document appears once at its latest seq test", func(t *testing.T) {
		store, err := memory.New()
		assert.NoError(t, err)

		ctx := context.Background()
		doc := document.New("a", map[string]any{"n": "1"})
		assert.NoError(t, store.Put(ctx, doc))

		updated := doc.DeepCopy()
		updated.Rev = doc.Rev.Next(updated.Body)
		assert.NoError(t, store.Put(ctx, updated))

		feed, err := store.ChangesSince(ctx, 0, false, stores.FeedNormal)
		assert.NoError(t, err)
		events := drain(t, feed)

		assert.Len(t, events, 1)
		assert.Equal(t, uint64(2), events[0].Seq)
	})

	t.Run("reopening with the same since is idempotent test", func(t *testing.T) {
		store, err := memory.New()
		assert.NoError(t, err)

		ctx := context.Background()
		assert.NoError(t, store.Put(ctx, document.New("a", nil)))
		assert.NoError(t, store.Put(ctx, document.New("b", nil)))

		first, err := store.ChangesSince(ctx, 0, false, stores.FeedNormal)
		assert.NoError(t, err)
		second, err := store.ChangesSince(ctx, 0, false, stores.FeedNormal)
		assert.NoError(t, err)

		a := drain(t, first)
		b := drain(t, second)
		assert.Equal(t, len(a), len(b))
		for i := range a {
			assert.Equal(t, a[i].Seq, b[i].Seq)
			assert.Equal(t, a[i].ID, b[i].ID)
		}
	})

	t.Run("longpoll wakes on new write test", func(t *testing.T) {
		store, err := memory.New()
		assert.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		feed, err := store.ChangesSince(ctx, 0, true, stores.FeedLongpoll)
		assert.NoError(t, err)

		go func() {
			time.Sleep(50 * time.Millisecond)
			_ = store.Put(context.Background(), document.New("late", map[string]any{"type": "node"}))
		}()

		event, err := feed.Next(ctx)
		assert.NoError(t, err)
		assert.Equal(t, "late", event.ID)

		_, err = feed.Next(ctx)
		assert.Equal(t, io.EOF, err, "longpoll ends after the delivered window")
		assert.NoError(t, feed.Close())
	})

	t.Run("longpoll respects cancellation test", func(t *testing.T) {
		store, err := memory.New()
		assert.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		feed, err := store.ChangesSince(ctx, 0, false, stores.FeedLongpoll)
		assert.NoError(t, err)

		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		_, err = feed.Next(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestShared(t *testing.T) {
	t.Run("same name resolves to the same store test", func(t *testing.T) {
		defer memory.Drop("shared-a")

		a, err := memory.Shared("shared-a")
		assert.NoError(t, err)
		b, err := memory.Shared("shared-a")
		assert.NoError(t, err)
		assert.Same(t, a, b)

		c, err := memory.Shared("shared-b")
		assert.NoError(t, err)
		defer memory.Drop("shared-b")
		assert.NotSame(t, a, c)
	})
}
