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

// Package memory implements the document store contract using an in-memory
// database. It keeps one row per document id; the change feed reflects the
// compacted history, i.e. only the latest revision of each document.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-memdb"

	"github.com/ferry-db/ferry/pkg/document"
	"github.com/ferry-db/ferry/server/stores"
)

// Store is an in-memory document store. It assigns its own monotonically
// increasing sequence on every write.
type Store struct {
	db *memdb.MemDB

	mu      sync.Mutex
	lastSeq uint64
	watch   chan struct{}
	closed  bool
}

// docRecord is the stored shape of a document.
type docRecord struct {
	ID      string
	Seq     uint64
	Rev     string
	Deleted bool
	Body    map[string]any
}

// New returns a new in-memory document store.
func New() (*Store, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	return &Store{
		db:    db,
		watch: make(chan struct{}),
	}, nil
}

// Get returns the current state of the document with the given id.
func (s *Store) Get(_ context.Context, id string) (*document.Document, error) {
	if err := s.alive(); err != nil {
		return nil, err
	}

	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblDocuments, "id", id)
	if err != nil {
		return nil, fmt.Errorf("find document %s: %w", id, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("document %s: %w", id, stores.ErrDocumentNotFound)
	}

	return raw.(*docRecord).toDocument()
}

// Put writes the document, assigning the next sequence. Replaying a write
// with the revision the store already holds is a no-op; a revision that does
// not descend from the held one is a conflict.
func (s *Store) Put(_ context.Context, doc *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return stores.ErrStoreClosed
	}

	txn := s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblDocuments, "id", doc.ID)
	if err != nil {
		return fmt.Errorf("find document %s: %w", doc.ID, err)
	}

	if raw != nil {
		held, err := document.ParseRevision(raw.(*docRecord).Rev)
		if err != nil {
			return err
		}
		if doc.Rev.Equal(held) {
			// Idempotent replay of an already-applied revision.
			return nil
		}
		if doc.Rev.ConflictsWith(held) {
			return fmt.Errorf("document %s at %s, incoming %s: %w",
				doc.ID, held, doc.Rev, stores.ErrRevisionConflict)
		}
	}

	s.lastSeq++
	record := &docRecord{
		ID:      doc.ID,
		Seq:     s.lastSeq,
		Rev:     doc.Rev.String(),
		Deleted: doc.Deleted,
		Body:    doc.Body,
	}
	if err := txn.Insert(tblDocuments, record); err != nil {
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}

	txn.Commit()
	s.wake()
	return nil
}

// DeleteMultiple tombstones the documents with the given ids. Unknown ids
// are skipped.
func (s *Store) DeleteMultiple(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return stores.ErrStoreClosed
	}

	txn := s.db.Txn(true)
	defer txn.Abort()

	var woke bool
	for _, id := range ids {
		raw, err := txn.First(tblDocuments, "id", id)
		if err != nil {
			return fmt.Errorf("find document %s: %w", id, err)
		}
		if raw == nil {
			continue
		}

		record := raw.(*docRecord)
		if record.Deleted {
			continue
		}

		rev, err := document.ParseRevision(record.Rev)
		if err != nil {
			return err
		}

		s.lastSeq++
		tombstone := &docRecord{
			ID:      id,
			Seq:     s.lastSeq,
			Rev:     rev.Next(nil).String(),
			Deleted: true,
		}
		if err := txn.Insert(tblDocuments, tombstone); err != nil {
			return fmt.Errorf("insert tombstone %s: %w", id, err)
		}
		woke = true
	}

	txn.Commit()
	if woke {
		s.wake()
	}
	return nil
}

// ChangesSince opens a change feed of all changes with sequence greater
// than since.
func (s *Store) ChangesSince(
	_ context.Context,
	since uint64,
	includeDocs bool,
	mode stores.FeedMode,
) (stores.ChangeFeed, error) {
	if err := s.alive(); err != nil {
		return nil, err
	}

	switch mode {
	case stores.FeedNormal, stores.FeedLongpoll:
	default:
		return nil, fmt.Errorf("mode %d: %w", mode, stores.ErrFeedModeUnsupported)
	}

	return &feed{
		store:       s,
		since:       since,
		includeDocs: includeDocs,
		mode:        mode,
	}, nil
}

// LastSeq returns the highest sequence the store has assigned.
func (s *Store) LastSeq(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, stores.ErrStoreClosed
	}
	return s.lastSeq, nil
}

// Ping answers the existence probe.
func (s *Store) Ping(_ context.Context) error {
	return s.alive()
}

// Close marks the store closed. Shared stores stay registered so a later
// task can reopen them by name.
func (s *Store) Close() error {
	return nil
}

func (s *Store) alive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stores.ErrStoreClosed
	}
	return nil
}

// wake signals feeds waiting in longpoll mode. Callers hold s.mu.
func (s *Store) wake() {
	close(s.watch)
	s.watch = make(chan struct{})
}

// watchCh returns the channel closed on the next write.
func (s *Store) watchCh() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watch
}

func (r *docRecord) toDocument() (*document.Document, error) {
	rev, err := document.ParseRevision(r.Rev)
	if err != nil {
		return nil, err
	}

	doc := &document.Document{
		ID:      r.ID,
		Rev:     rev,
		Deleted: r.Deleted,
		Seq:     r.Seq,
		Body:    r.Body,
	}
	return doc.DeepCopy(), nil
}
