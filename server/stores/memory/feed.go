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

package memory

import (
	"context"
	"fmt"
	"io"
	gotime "time"

	"github.com/hashicorp/go-memdb"

	"github.com/ferry-db/ferry/pkg/document"
	"github.com/ferry-db/ferry/server/stores"
)

// pollInterval bounds how long a longpoll feed sleeps between wake checks
// when no write notification arrives.
const pollInterval = gotime.Second

// feed iterates the documents table in ascending sequence order. A window
// is one consistent memdb snapshot; longpoll feeds wait for a write past
// the cursor and then serve exactly one non-empty window.
type feed struct {
	store       *Store
	since       uint64
	includeDocs bool
	mode        stores.FeedMode

	txn       *memdb.Txn
	it        memdb.ResultIterator
	cursor    uint64
	delivered bool
	done      bool
}

// Next returns the next change event, or io.EOF when the feed is drained.
func (f *feed) Next(ctx context.Context) (*stores.ChangeEvent, error) {
	if f.done {
		return nil, io.EOF
	}

	if f.it == nil {
		f.cursor = f.since
		if err := f.openWindow(); err != nil {
			return nil, err
		}
	}

	for {
		raw := f.it.Next()
		if raw != nil {
			record := raw.(*docRecord)
			f.cursor = record.Seq
			f.delivered = true
			return f.toEvent(record)
		}

		// Window drained.
		if f.mode == stores.FeedNormal || f.delivered {
			f.finish()
			return nil, io.EOF
		}

		if err := f.waitForChange(ctx); err != nil {
			f.finish()
			return nil, err
		}
		if err := f.openWindow(); err != nil {
			return nil, err
		}
	}
}

// Close releases the feed's snapshot.
func (f *feed) Close() error {
	f.finish()
	return nil
}

// openWindow snapshots all changes past the cursor.
func (f *feed) openWindow() error {
	f.finish()
	f.done = false

	txn := f.store.db.Txn(false)
	it, err := txn.LowerBound(tblDocuments, "seq", f.cursor+1)
	if err != nil {
		txn.Abort()
		return fmt.Errorf("open changes window since %d: %w", f.cursor, err)
	}

	f.txn = txn
	f.it = it
	return nil
}

// waitForChange suspends cooperatively until a write lands past the cursor
// or the context ends.
func (f *feed) waitForChange(ctx context.Context) error {
	for {
		ch := f.store.watchCh()

		last, err := f.store.LastSeq(ctx)
		if err != nil {
			return err
		}
		if last > f.cursor {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		case <-gotime.After(pollInterval):
		}
	}
}

func (f *feed) finish() {
	if f.txn != nil {
		f.txn.Abort()
		f.txn = nil
	}
	f.it = nil
	f.done = true
}

func (f *feed) toEvent(record *docRecord) (*stores.ChangeEvent, error) {
	rev, err := document.ParseRevision(record.Rev)
	if err != nil {
		return nil, err
	}

	event := &stores.ChangeEvent{
		Seq:     record.Seq,
		ID:      record.ID,
		Rev:     rev,
		Deleted: record.Deleted,
	}
	if f.includeDocs {
		doc, err := record.toDocument()
		if err != nil {
			return nil, err
		}
		event.Doc = doc
	}
	return event, nil
}
