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

package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ferry-db/ferry/server/admin"
	"github.com/ferry-db/ferry/server/backend"
	"github.com/ferry-db/ferry/server/backend/database/mongo"
	"github.com/ferry-db/ferry/server/profiling"
)

// Below are the values of the default values of Ferry config.
const (
	DefaultAdminPort     = 8180
	DefaultProfilingPort = 8181

	DefaultMongoConnectionURI     = "mongodb://localhost:27017"
	DefaultMongoConnectionTimeout = 5 * time.Second
	DefaultMongoPingTimeout       = 5 * time.Second
	DefaultMongoFerryDatabase     = "ferry-meta"

	DefaultBatchSize           = 100
	DefaultRetryMaxAttempts    = 5
	DefaultRetryBaseInterval   = 100 * time.Millisecond
	DefaultRetryMaxInterval    = 5 * time.Second
	DefaultStoreConnectTimeout = 5 * time.Second
	DefaultStoreRequestTimeout = 30 * time.Second

	DefaultHostname = ""
)

// Config is the configuration for creating a Ferry instance.
type Config struct {
	Admin     *admin.Config     `yaml:"Admin"`
	Profiling *profiling.Config `yaml:"Profiling"`
	Backend   *backend.Config   `yaml:"Backend"`
	Mongo     *mongo.Config     `yaml:"Mongo"`
}

// NewConfig returns a Config struct that contains reasonable defaults
// for most of the configurations.
func NewConfig() *Config {
	return newConfig(DefaultAdminPort, DefaultProfilingPort)
}

// NewConfigFromFile returns a Config struct for the given conf file.
func NewConfigFromFile(path string) (*Config, error) {
	conf := &Config{}
	bytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err = yaml.Unmarshal(bytes, conf); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	conf.ensureDefaultValue()
	return conf, nil
}

// AdminAddr returns the admin address.
func (c *Config) AdminAddr() string {
	return fmt.Sprintf("localhost:%d", c.Admin.Port)
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if err := c.Admin.Validate(); err != nil {
		return err
	}

	if err := c.Profiling.Validate(); err != nil {
		return err
	}

	if err := c.Backend.Validate(); err != nil {
		return err
	}

	if c.Mongo != nil {
		if err := c.Mongo.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ensureDefaultValue sets the value of the option to which the default value
// should be applied when the user does not input it.
func (c *Config) ensureDefaultValue() {
	if c.Admin == nil {
		c.Admin = &admin.Config{}
	}
	if c.Admin.Port == 0 {
		c.Admin.Port = DefaultAdminPort
	}

	if c.Profiling == nil {
		c.Profiling = &profiling.Config{}
	}
	if c.Profiling.Port == 0 {
		c.Profiling.Port = DefaultProfilingPort
	}

	if c.Backend == nil {
		c.Backend = &backend.Config{}
	}
	if c.Backend.BatchSize == 0 {
		c.Backend.BatchSize = DefaultBatchSize
	}
	if c.Backend.RetryMaxAttempts == 0 {
		c.Backend.RetryMaxAttempts = DefaultRetryMaxAttempts
	}
	if c.Backend.RetryBaseInterval == "" {
		c.Backend.RetryBaseInterval = DefaultRetryBaseInterval.String()
	}
	if c.Backend.RetryMaxInterval == "" {
		c.Backend.RetryMaxInterval = DefaultRetryMaxInterval.String()
	}
	if c.Backend.StoreConnectTimeout == "" {
		c.Backend.StoreConnectTimeout = DefaultStoreConnectTimeout.String()
	}
	if c.Backend.StoreRequestTimeout == "" {
		c.Backend.StoreRequestTimeout = DefaultStoreRequestTimeout.String()
	}

	if c.Mongo != nil {
		if c.Mongo.ConnectionURI == "" {
			c.Mongo.ConnectionURI = DefaultMongoConnectionURI
		}
		if c.Mongo.ConnectionTimeout == "" {
			c.Mongo.ConnectionTimeout = DefaultMongoConnectionTimeout.String()
		}
		if c.Mongo.PingTimeout == "" {
			c.Mongo.PingTimeout = DefaultMongoPingTimeout.String()
		}
		if c.Mongo.FerryDatabase == "" {
			c.Mongo.FerryDatabase = DefaultMongoFerryDatabase
		}
	}
}

func newConfig(adminPort, profilingPort int) *Config {
	conf := &Config{
		Admin:     &admin.Config{Port: adminPort},
		Profiling: &profiling.Config{Port: profilingPort},
		Backend:   &backend.Config{},
	}
	conf.ensureDefaultValue()
	return conf
}
