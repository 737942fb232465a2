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

// Package httpstore implements the document store contract against a remote
// CouchDB-style REST endpoint with basic auth.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ferry-db/ferry/pkg/document"
	"github.com/ferry-db/ferry/pkg/errors"
	"github.com/ferry-db/ferry/server/stores"
)

// Store talks to one remote document database. It owns its connection pool;
// credentials come from the endpoint URL's userinfo.
type Store struct {
	endpoint stores.Endpoint
	base     *url.URL
	client   *http.Client

	user    string
	pass    string
	hasAuth bool
}

// Dial creates a store adapter for the given endpoint. No request is made;
// reachability is checked by Ping.
func Dial(endpoint stores.Endpoint, conf *Config) (*Store, error) {
	if conf == nil {
		conf = &Config{}
	}
	conf.ensureDefaultValue()
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	base := endpoint.URL()
	if base == nil {
		return nil, stores.ErrInvalidEndpoint
	}
	base.User = nil
	base.Path = strings.TrimSuffix(base.Path, "/")

	user, pass, hasAuth := endpoint.BasicAuth()

	return &Store{
		endpoint: endpoint,
		base:     base,
		client: &http.Client{
			Timeout: conf.ParseRequestTimeout(),
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: conf.ParseConnectTimeout(),
				}).DialContext,
			},
		},
		user:    user,
		pass:    pass,
		hasAuth: hasAuth,
	}, nil
}

// Get returns the current state of the document with the given id.
func (s *Store) Get(ctx context.Context, id string) (*document.Document, error) {
	res, err := s.do(ctx, http.MethodGet, s.docURL(id), nil)
	if err != nil {
		return nil, err
	}
	defer closeBody(res)

	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("document %s: %w", id, stores.ErrDocumentNotFound)
	case res.StatusCode >= 300:
		return nil, s.statusError("get document", res)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", id, err)
	}
	return decodeDocument(data)
}

// Put writes the document with its replicated revision preserved.
func (s *Store) Put(ctx context.Context, doc *document.Document) error {
	encoded, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	target := s.docURL(doc.ID) + "?new_edits=false"
	res, err := s.do(ctx, http.MethodPut, target, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	defer closeBody(res)

	switch {
	case res.StatusCode == http.StatusConflict:
		return fmt.Errorf("document %s: %w", doc.ID, stores.ErrRevisionConflict)
	case res.StatusCode >= 300:
		return s.statusError("put document", res)
	}
	return nil
}

// ChangesSince opens a change feed of all changes with sequence greater
// than since. The whole window is requested up front; events are decoded
// lazily.
func (s *Store) ChangesSince(
	ctx context.Context,
	since uint64,
	includeDocs bool,
	mode stores.FeedMode,
) (stores.ChangeFeed, error) {
	switch mode {
	case stores.FeedNormal, stores.FeedLongpoll:
	default:
		return nil, fmt.Errorf("mode %d: %w", mode, stores.ErrFeedModeUnsupported)
	}

	query := url.Values{}
	query.Set("since", strconv.FormatUint(since, 10))
	query.Set("include_docs", strconv.FormatBool(includeDocs))
	query.Set("feed", mode.String())

	target := s.base.String() + "/_changes?" + query.Encode()
	res, err := s.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	defer closeBody(res)

	if res.StatusCode >= 300 {
		return nil, s.statusError("open changes feed", res)
	}

	var window struct {
		Results []struct {
			Seq     any    `json:"seq"`
			ID      string `json:"id"`
			Deleted bool   `json:"deleted"`
			Changes []struct {
				Rev string `json:"rev"`
			} `json:"changes"`
			Doc map[string]any `json:"doc"`
		} `json:"results"`
	}
	if err := json.NewDecoder(res.Body).Decode(&window); err != nil {
		return nil, fmt.Errorf("decode changes feed: %w", err)
	}

	events := make([]*stores.ChangeEvent, 0, len(window.Results))
	for _, result := range window.Results {
		seq, err := coerceSeq(result.Seq)
		if err != nil {
			return nil, err
		}
		if len(result.Changes) == 0 {
			return nil, fmt.Errorf("change %s: missing revision", result.ID)
		}
		rev, err := document.ParseRevision(result.Changes[0].Rev)
		if err != nil {
			return nil, err
		}

		event := &stores.ChangeEvent{
			Seq:     seq,
			ID:      result.ID,
			Rev:     rev,
			Deleted: result.Deleted,
		}
		if includeDocs && result.Doc != nil {
			doc, err := documentFromWire(result.Doc)
			if err != nil {
				return nil, err
			}
			doc.Seq = seq
			event.Doc = doc
		}
		events = append(events, event)
	}

	return &windowFeed{events: events}, nil
}

// DeleteMultiple tombstones the documents with the given ids. Unknown ids
// are skipped.
func (s *Store) DeleteMultiple(ctx context.Context, ids []string) error {
	for _, id := range ids {
		doc, err := s.Get(ctx, id)
		if err != nil {
			if errors.IsStatus(err, errors.ErrCodeNotFound) {
				continue
			}
			return err
		}
		if doc.Deleted {
			continue
		}

		tombstone := &document.Document{
			ID:      id,
			Rev:     doc.Rev.Next(nil),
			Deleted: true,
		}
		if err := s.Put(ctx, tombstone); err != nil {
			return err
		}
	}
	return nil
}

// LastSeq returns the remote store's update sequence.
func (s *Store) LastSeq(ctx context.Context) (uint64, error) {
	res, err := s.do(ctx, http.MethodGet, s.base.String(), nil)
	if err != nil {
		return 0, err
	}
	defer closeBody(res)

	if res.StatusCode >= 300 {
		return 0, s.statusError("read store info", res)
	}

	var info struct {
		UpdateSeq any `json:"update_seq"`
	}
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return 0, fmt.Errorf("decode store info: %w", err)
	}
	return coerceSeq(info.UpdateSeq)
}

// Ping answers the existence probe with a HEAD request.
func (s *Store) Ping(ctx context.Context) error {
	res, err := s.do(ctx, http.MethodHead, s.base.String(), nil)
	if err != nil {
		return err
	}
	defer closeBody(res)

	if res.StatusCode >= 300 {
		return s.statusError("probe endpoint", res)
	}
	return nil
}

// Create creates the remote database, used for create_target tasks. An
// already existing database is not an error.
func (s *Store) Create(ctx context.Context) error {
	res, err := s.do(ctx, http.MethodPut, s.base.String(), nil)
	if err != nil {
		return err
	}
	defer closeBody(res)

	if res.StatusCode >= 300 && res.StatusCode != http.StatusPreconditionFailed {
		return s.statusError("create target database", res)
	}
	return nil
}

// Close releases the adapter's idle connections.
func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// Endpoint returns the endpoint this adapter talks to.
func (s *Store) Endpoint() stores.Endpoint {
	return s.endpoint
}

func (s *Store) docURL(id string) string {
	return s.base.String() + "/" + url.PathEscape(id)
}

func (s *Store) do(ctx context.Context, method, target string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, target, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if s.hasAuth {
		req.SetBasicAuth(s.user, s.pass)
	}

	res, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s %s: %v: %w",
			method, s.endpoint, err,
			errors.Unavailable("endpoint did not respond").WithCode("ErrEndpointUnreachable"))
	}
	return res, nil
}

// statusError maps unexpected HTTP statuses onto the error taxonomy:
// retryable transport conditions become Unavailable, everything else
// Internal.
func (s *Store) statusError(op string, res *http.Response) error {
	switch res.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%s: %s: %w", op, res.Status,
			errors.Unavailable("transient transport error").WithCode("ErrTransientTransport"))
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %s: %w", op, res.Status,
			errors.Unavailable("endpoint rejected credentials").WithCode("ErrEndpointUnreachable"))
	default:
		return errors.Internal(fmt.Sprintf("%s: unexpected status %s", op, res.Status))
	}
}

func closeBody(res *http.Response) {
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
}

// windowFeed serves one decoded changes window.
type windowFeed struct {
	events []*stores.ChangeEvent
	next   int
}

// Next returns the next change event, or io.EOF when the window is drained.
func (f *windowFeed) Next(_ context.Context) (*stores.ChangeEvent, error) {
	if f.next >= len(f.events) {
		return nil, io.EOF
	}
	event := f.events[f.next]
	f.next++
	return event, nil
}

// Close is a no-op; the window is already fully read.
func (f *windowFeed) Close() error {
	return nil
}
