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

package admin_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ferry-db/ferry/api/types"
	"github.com/ferry-db/ferry/pkg/document"
	"github.com/ferry-db/ferry/server/admin"
	"github.com/ferry-db/ferry/server/backend"
	"github.com/ferry-db/ferry/server/backend/background"
	memdb "github.com/ferry-db/ferry/server/backend/database/memory"
	"github.com/ferry-db/ferry/server/profiling/prometheus"
	"github.com/ferry-db/ferry/server/replication"
	memstore "github.com/ferry-db/ferry/server/stores/memory"
)

var storeSerial int

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	metrics, err := prometheus.NewMetrics()
	assert.NoError(t, err)
	db, err := memdb.New()
	assert.NoError(t, err)

	be := &backend.Backend{
		Config: &backend.Config{
			BatchSize:           10,
			RetryMaxAttempts:    1,
			RetryBaseInterval:   "10ms",
			RetryMaxInterval:    "50ms",
			StoreConnectTimeout: "1s",
			StoreRequestTimeout: "2s",
		},
		Background: background.New(metrics),
		Metrics:    metrics,
		DB:         db,
	}
	t.Cleanup(func() {
		assert.NoError(t, be.Shutdown())
	})

	replicator, err := replication.NewReplicator(be)
	assert.NoError(t, err)

	srv := httptest.NewServer(admin.NewServer(&admin.Config{Port: 1}, replicator).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func newStorePair(t *testing.T) (string, string) {
	t.Helper()

	storeSerial++
	sourceName := fmt.Sprintf("admin-src-%d", storeSerial)
	targetName := fmt.Sprintf("admin-dst-%d", storeSerial)
	t.Cleanup(func() {
		memstore.Drop(sourceName)
		memstore.Drop(targetName)
	})

	_, err := memstore.Shared(sourceName)
	assert.NoError(t, err)
	_, err = memstore.Shared(targetName)
	assert.NoError(t, err)

	return "memory://" + sourceName, "memory://" + targetName
}

func startTask(t *testing.T, srv *httptest.Server, req *types.StartReplicationRequest) (*types.ReplicationTask, *http.Response) {
	t.Helper()

	body, err := json.Marshal(req)
	assert.NoError(t, err)
	res, err := http.Post(srv.URL+"/replications", "application/json", bytes.NewReader(body))
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, res.Body.Close())
	}()

	if res.StatusCode != http.StatusAccepted {
		return nil, res
	}
	var task types.ReplicationTask
	assert.NoError(t, json.NewDecoder(res.Body).Decode(&task))
	return &task, res
}

func listTasks(t *testing.T, srv *httptest.Server, query string) []*types.ReplicationTask {
	t.Helper()

	res, err := http.Get(srv.URL + "/replications" + query)
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, res.Body.Close())
	}()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var tasks []*types.ReplicationTask
	assert.NoError(t, json.NewDecoder(res.Body).Decode(&tasks))
	return tasks
}

func TestAdminServer(t *testing.T) {
	t.Run("start then query then clear test", func(t *testing.T) {
		srv := newTestServer(t)
		source, target := newStorePair(t)

		store, err := memstore.Shared(source[len("memory://"):])
		assert.NoError(t, err)
		assert.NoError(t, store.Put(context.Background(), document.New("a", map[string]any{"type": "node"})))

		task, res := startTask(t, srv, &types.StartReplicationRequest{Source: source, Target: target})
		assert.Equal(t, http.StatusAccepted, res.StatusCode)
		assert.Equal(t, "running", task.Status)
		assert.NotEmpty(t, task.ReplicationID)

		// started_on is rendered human-readable
		_, err = time.Parse(time.RFC1123, task.StartedOn)
		assert.NoError(t, err)

		assert.Eventually(t, func() bool {
			tasks := listTasks(t, srv, "")
			return len(tasks) == 1 && tasks[0].Status == "completed"
		}, 3*time.Second, 10*time.Millisecond)

		narrowed := listTasks(t, srv, fmt.Sprintf("?source=%s&target=%s",
			url.QueryEscape(source), url.QueryEscape(target)))
		assert.Len(t, narrowed, 1)
		assert.Equal(t, uint64(1), narrowed[0].DocsWritten)

		req, err := http.NewRequest(http.MethodDelete, srv.URL+"/replications/"+task.ID, nil)
		assert.NoError(t, err)
		clearRes, err := http.DefaultClient.Do(req)
		assert.NoError(t, err)
		assert.NoError(t, clearRes.Body.Close())
		assert.Equal(t, http.StatusNoContent, clearRes.StatusCode)

		assert.Empty(t, listTasks(t, srv, ""))
	})

	t.Run("duplicate start returns conflict test", func(t *testing.T) {
		srv := newTestServer(t)
		source, target := newStorePair(t)

		req := &types.StartReplicationRequest{Source: source, Target: target, Continuous: true}
		_, res := startTask(t, srv, req)
		assert.Equal(t, http.StatusAccepted, res.StatusCode)

		_, res = startTask(t, srv, req)
		assert.Equal(t, http.StatusConflict, res.StatusCode)

		stopReq, err := http.NewRequest(http.MethodDelete, srv.URL+fmt.Sprintf(
			"/replications?source=%s&target=%s&continuous=true",
			url.QueryEscape(source), url.QueryEscape(target)), nil)
		assert.NoError(t, err)
		stopRes, err := http.DefaultClient.Do(stopReq)
		assert.NoError(t, err)
		assert.NoError(t, stopRes.Body.Close())
		assert.Equal(t, http.StatusOK, stopRes.StatusCode)
	})

	t.Run("bad endpoints are rejected test", func(t *testing.T) {
		srv := newTestServer(t)

		_, res := startTask(t, srv, &types.StartReplicationRequest{
			Source: "ftp://example.com/db",
			Target: "memory://dst",
		})
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)

		_, res = startTask(t, srv, &types.StartReplicationRequest{
			Source: "http://127.0.0.1:1/src",
			Target: "http://127.0.0.1:1/dst",
		})
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("stop without match returns not found test", func(t *testing.T) {
		srv := newTestServer(t)
		source, target := newStorePair(t)

		req, err := http.NewRequest(http.MethodDelete, srv.URL+fmt.Sprintf(
			"/replications?source=%s&target=%s",
			url.QueryEscape(source), url.QueryEscape(target)), nil)
		assert.NoError(t, err)
		res, err := http.DefaultClient.Do(req)
		assert.NoError(t, err)
		assert.NoError(t, res.Body.Close())
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})
}
