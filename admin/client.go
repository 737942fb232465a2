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

// Package admin provides the client for the admin HTTP API.
package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	gotime "time"

	"github.com/ferry-db/ferry/api/types"
)

// DefaultTimeout is the request timeout of the client.
const DefaultTimeout = 30 * gotime.Second

// Client is a client for the admin HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout configures the request timeout.
func WithTimeout(timeout gotime.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

// Dial creates an instance of Client for the given admin address.
func Dial(addr string, opts ...Option) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	c := &Client{
		baseURL: strings.TrimSuffix(addr, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartReplication submits a replication task and returns its record.
func (c *Client) StartReplication(
	ctx context.Context,
	req *types.StartReplicationRequest,
) (*types.ReplicationTask, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal start request: %w", err)
	}

	var task types.ReplicationTask
	if err := c.do(ctx, http.MethodPost, "/replications", bytes.NewReader(body), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// StopReplication requests cooperative cancellation of the task matching
// the endpoints and continuity.
func (c *Client) StopReplication(
	ctx context.Context,
	source, target string,
	continuous bool,
) (*types.ReplicationTask, error) {
	query := url.Values{}
	query.Set("source", source)
	query.Set("target", target)
	query.Set("continuous", strconv.FormatBool(continuous))

	var task types.ReplicationTask
	if err := c.do(ctx, http.MethodDelete, "/replications?"+query.Encode(), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListReplications returns the task records matching the optional
// endpoints.
func (c *Client) ListReplications(
	ctx context.Context,
	source, target string,
) ([]*types.ReplicationTask, error) {
	query := url.Values{}
	if source != "" {
		query.Set("source", source)
	}
	if target != "" {
		query.Set("target", target)
	}

	path := "/replications"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var tasks []*types.ReplicationTask
	if err := c.do(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ClearReplication removes a finished task record.
func (c *Client) ClearReplication(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/replications/"+taskID, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode >= http.StatusBadRequest {
		var failure types.ErrorResponse
		if err := json.NewDecoder(res.Body).Decode(&failure); err != nil || failure.Message == "" {
			return fmt.Errorf("%s %s: status %d", method, path, res.StatusCode)
		}
		return fmt.Errorf("%s %s: %s", method, path, failure.Message)
	}

	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
