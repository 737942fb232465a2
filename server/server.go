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

// Package server provides the Ferry server which is the main entry point of
// the Ferry system. The server is responsible for running the replication
// service and its admin surface.
package server

import (
	gosync "sync"

	"github.com/ferry-db/ferry/server/admin"
	"github.com/ferry-db/ferry/server/backend"
	"github.com/ferry-db/ferry/server/profiling"
	"github.com/ferry-db/ferry/server/profiling/prometheus"
	"github.com/ferry-db/ferry/server/replication"
)

// Ferry is a server of Ferry. The server accepts replication tasks over the
// admin surface and pumps each task's change feed from its source store to
// its target store.
type Ferry struct {
	lock gosync.Mutex

	conf            *Config
	backend         *backend.Backend
	replicator      *replication.Replicator
	adminServer     *admin.Server
	profilingServer *profiling.Server

	shutdown   bool
	shutdownCh chan struct{}
}

// New creates a new instance of Ferry.
func New(conf *Config) (*Ferry, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	metrics, err := prometheus.NewMetrics()
	if err != nil {
		return nil, err
	}

	be, err := backend.New(conf.Backend, conf.Mongo, metrics)
	if err != nil {
		return nil, err
	}

	replicator, err := replication.NewReplicator(be)
	if err != nil {
		return nil, err
	}

	var profilingServer *profiling.Server
	if conf.Profiling != nil {
		profilingServer = profiling.NewServer(conf.Profiling, metrics)
	}

	return &Ferry{
		conf:            conf,
		backend:         be,
		replicator:      replicator,
		adminServer:     admin.NewServer(conf.Admin, replicator),
		profilingServer: profilingServer,
		shutdownCh:      make(chan struct{}),
	}, nil
}

// Start starts the server by opening the admin port.
func (r *Ferry) Start() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.profilingServer != nil {
		if err := r.profilingServer.Start(); err != nil {
			return err
		}
	}

	return r.adminServer.Start()
}

// Shutdown shuts down this Ferry server.
func (r *Ferry) Shutdown(graceful bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.shutdown {
		return nil
	}

	r.adminServer.Shutdown(graceful)
	if r.profilingServer != nil {
		r.profilingServer.Shutdown(graceful)
	}

	// release running engines so the background wait can drain
	r.replicator.StopAll()

	if err := r.backend.Shutdown(); err != nil {
		return err
	}

	close(r.shutdownCh)
	r.shutdown = true
	return nil
}

// ShutdownCh returns the shutdown channel.
func (r *Ferry) ShutdownCh() <-chan struct{} {
	return r.shutdownCh
}

// AdminAddr returns the address of the admin surface.
func (r *Ferry) AdminAddr() string {
	return r.conf.AdminAddr()
}

// Replicator returns the replication service. It is used for testing.
func (r *Ferry) Replicator() *replication.Replicator {
	return r.replicator
}
