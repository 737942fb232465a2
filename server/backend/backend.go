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

// Package backend provides the backend implementation of the Ferry.
// This package is responsible for managing the checkpoint database and
// other resources required to run replication tasks.
package backend

import (
	"errors"
	"fmt"
	"os"

	"github.com/ferry-db/ferry/server/backend/background"
	"github.com/ferry-db/ferry/server/backend/database"
	memdb "github.com/ferry-db/ferry/server/backend/database/memory"
	"github.com/ferry-db/ferry/server/backend/database/mongo"
	"github.com/ferry-db/ferry/server/logging"
	"github.com/ferry-db/ferry/server/profiling/prometheus"
	"github.com/ferry-db/ferry/server/stores"
	"github.com/ferry-db/ferry/server/stores/httpstore"
	memstore "github.com/ferry-db/ferry/server/stores/memory"
)

// Backend manages Ferry's backend such as the checkpoint Database and the
// background service running replication tasks.
type Backend struct {
	Config *Config

	// Background is used to manage background tasks.
	Background *background.Background

	// Metrics is used to expose metrics.
	Metrics *prometheus.Metrics

	// DB is the checkpoint database instance.
	DB database.Database
}

// New creates a new instance of Backend.
func New(
	conf *Config,
	mongoConf *mongo.Config,
	metrics *prometheus.Metrics,
) (*Backend, error) {
	// 01. Build the server info with the given hostname or the hostname of the
	// current machine.
	hostname := conf.Hostname
	if hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("os.Hostname: %w", err)
		}
		conf.Hostname = hostname
	}

	// 02. Create the background task manager.
	bg := background.New(metrics)

	// 03. Create the checkpoint database instance. If the MongoDB
	// configuration is given, create a MongoDB instance. Otherwise, create
	// a memory database instance.
	var db database.Database
	var err error
	if mongoConf != nil {
		db, err = mongo.Dial(mongoConf)
		if err != nil {
			return nil, err
		}
	} else {
		db, err = memdb.New()
		if err != nil {
			return nil, err
		}
	}

	dbInfo := "memory"
	if mongoConf != nil {
		dbInfo = mongoConf.ConnectionURI
	}
	logging.DefaultLogger().Infof("backend created: db: %s", dbInfo)

	return &Backend{
		Config:     conf,
		Background: bg,
		Metrics:    metrics,
		DB:         db,
	}, nil
}

// Shutdown closes all resources of this instance.
func (b *Backend) Shutdown() error {
	var errs []error

	b.Background.Close()

	if err := b.DB.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logging.DefaultLogger().Infof("backend stopped")
	return nil
}

// OpenStore opens the document store named by the given endpoint. Endpoints
// with the memory scheme resolve to in-process stores shared by name so that
// a source and a target in the same server see the same data.
func (b *Backend) OpenStore(endpoint stores.Endpoint) (stores.Store, error) {
	switch endpoint.Scheme() {
	case stores.SchemeMemory:
		return memstore.Shared(endpoint.Normalized())
	case stores.SchemeHTTP, stores.SchemeHTTPS:
		return httpstore.Dial(endpoint, &httpstore.Config{
			ConnectTimeout: b.Config.StoreConnectTimeout,
			RequestTimeout: b.Config.StoreRequestTimeout,
		})
	default:
		return nil, fmt.Errorf("open store %q: %w", endpoint.String(), stores.ErrInvalidEndpoint)
	}
}
