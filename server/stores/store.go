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

// Package stores defines the document store contract replication runs
// against: uniform read/write access plus a sequence-ordered, resumable
// change feed.
package stores

import (
	"context"

	"github.com/ferry-db/ferry/pkg/document"
	"github.com/ferry-db/ferry/pkg/errors"
)

var (
	// ErrDocumentNotFound is returned when the store holds no document for
	// the requested id.
	ErrDocumentNotFound = errors.NotFound("document not found").WithCode("ErrDocumentNotFound")

	// ErrRevisionConflict is returned when a write carries a revision that
	// does not descend from the revision the store currently holds.
	ErrRevisionConflict = errors.FailedPrecond("revision conflict").WithCode("ErrRevisionConflict")

	// ErrStoreClosed is returned when the store has been closed.
	ErrStoreClosed = errors.FailedPrecond("store closed").WithCode("ErrStoreClosed")

	// ErrFeedModeUnsupported is returned when the store cannot serve the
	// requested feed mode.
	ErrFeedModeUnsupported = errors.InvalidArgument("feed mode unsupported").WithCode("ErrFeedModeUnsupported")
)

// FeedMode selects how a change feed behaves once it catches up with the
// store's history.
type FeedMode int

const (
	// FeedNormal produces a finite feed of all changes past the given
	// sequence, then ends.
	FeedNormal FeedMode = iota

	// FeedLongpoll suspends until at least one new change exists past the
	// given sequence, then behaves like FeedNormal for the new window. Used
	// only by continuous tasks.
	FeedLongpoll
)

// String returns the wire name of the mode.
func (m FeedMode) String() string {
	if m == FeedLongpoll {
		return "longpoll"
	}
	return "normal"
}

// ChangeEvent is one entry of a store's change history. Doc is nil unless
// the feed was opened with includeDocs.
type ChangeEvent struct {
	Seq     uint64
	ID      string
	Rev     document.Revision
	Deleted bool
	Doc     *document.Document
}

// ChangeFeed is a lazily-read, strictly ascending sequence of change events.
// Next returns io.EOF when the feed is drained. Feeds are not safe for
// concurrent use.
type ChangeFeed interface {
	Next(ctx context.Context) (*ChangeEvent, error)
	Close() error
}

// Store is the uniform adapter over a local or remote document store. The
// adapter owns its own connection pooling and timeouts; callers never hold
// locks across its methods.
type Store interface {
	// Get returns the current state of the document with the given id.
	Get(ctx context.Context, id string) (*document.Document, error)

	// Put writes the document. The store assigns the document's sequence;
	// the caller's Seq field is ignored.
	Put(ctx context.Context, doc *document.Document) error

	// ChangesSince opens a change feed of all changes with sequence greater
	// than since.
	ChangesSince(ctx context.Context, since uint64, includeDocs bool, mode FeedMode) (ChangeFeed, error)

	// DeleteMultiple tombstones the documents with the given ids. Unknown
	// ids are skipped.
	DeleteMultiple(ctx context.Context, ids []string) error

	// LastSeq returns the highest sequence the store has assigned.
	LastSeq(ctx context.Context) (uint64, error)

	// Ping answers the existence probe used before a task is accepted.
	Ping(ctx context.Context) error

	// Close releases the adapter's resources.
	Close() error
}

// Creatable is implemented by stores whose backing database can be created
// on demand, for tasks submitted with create_target.
type Creatable interface {
	Create(ctx context.Context) error
}
