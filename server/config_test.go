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

package server_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ferry-db/ferry/server"
)

func TestNewConfigFromFile(t *testing.T) {
	t.Run("fail read config file test", func(t *testing.T) {
		conf := server.NewConfig()
		assert.Equal(t, conf.AdminAddr(), "localhost:"+strconv.Itoa(server.DefaultAdminPort))
		_, err := server.NewConfigFromFile("nowhere.yml")
		assert.Error(t, err)
		assert.Equal(t, conf.Admin.Port, server.DefaultAdminPort)
		assert.Equal(t, conf.Profiling.Port, server.DefaultProfilingPort)
		assert.Equal(t, conf.Backend.BatchSize, server.DefaultBatchSize)
		assert.Nil(t, conf.Mongo)
	})

	t.Run("read config file test", func(t *testing.T) {
		conf, err := server.NewConfigFromFile("config.sample.yml")
		assert.NoError(t, err)
		assert.NoError(t, conf.Validate())

		assert.Equal(t, conf.Admin.Port, server.DefaultAdminPort)
		assert.Equal(t, conf.Profiling.Port, server.DefaultProfilingPort)
		assert.Equal(t, conf.Backend.BatchSize, server.DefaultBatchSize)
		assert.Equal(t, conf.Backend.RetryMaxAttempts, server.DefaultRetryMaxAttempts)

		retryBase, err := time.ParseDuration(conf.Backend.RetryBaseInterval)
		assert.NoError(t, err)
		assert.Equal(t, retryBase, server.DefaultRetryBaseInterval)

		storeConnect, err := time.ParseDuration(conf.Backend.StoreConnectTimeout)
		assert.NoError(t, err)
		assert.Equal(t, storeConnect, server.DefaultStoreConnectTimeout)

		connTimeout, err := time.ParseDuration(conf.Mongo.ConnectionTimeout)
		assert.NoError(t, err)
		assert.Equal(t, connTimeout, server.DefaultMongoConnectionTimeout)
		assert.Equal(t, conf.Mongo.ConnectionURI, server.DefaultMongoConnectionURI)
		assert.Equal(t, conf.Mongo.FerryDatabase, server.DefaultMongoFerryDatabase)

		pingTimeout, err := time.ParseDuration(conf.Mongo.PingTimeout)
		assert.NoError(t, err)
		assert.Equal(t, pingTimeout, server.DefaultMongoPingTimeout)
	})

	t.Run("invalid port test", func(t *testing.T) {
		conf := server.NewConfig()
		conf.Admin.Port = -1
		assert.Error(t, conf.Validate())
	})
}
