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

package httpstore

import (
	"fmt"
	"time"
)

// Below are the default values for the HTTP store adapter.
const (
	DefaultConnectTimeout = "5s"
	DefaultRequestTimeout = "30s"
)

// Config is the configuration for connecting to remote document stores. A
// stalled remote must not occupy a task worker longer than the request
// timeout.
type Config struct {
	ConnectTimeout string `yaml:"ConnectTimeout"`
	RequestTimeout string `yaml:"RequestTimeout"`
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.ConnectTimeout); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--store-connect-timeout" flag: %w`,
			c.ConnectTimeout,
			err,
		)
	}

	if _, err := time.ParseDuration(c.RequestTimeout); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--store-request-timeout" flag: %w`,
			c.RequestTimeout,
			err,
		)
	}

	return nil
}

func (c *Config) ensureDefaultValue() {
	if c.ConnectTimeout == "" {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.RequestTimeout == "" {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// ParseConnectTimeout returns the connect timeout duration.
func (c *Config) ParseConnectTimeout() time.Duration {
	result, err := time.ParseDuration(c.ConnectTimeout)
	if err != nil {
		panic(fmt.Errorf("parse connect timeout: %w", err))
	}
	return result
}

// ParseRequestTimeout returns the request timeout duration.
func (c *Config) ParseRequestTimeout() time.Duration {
	result, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		panic(fmt.Errorf("parse request timeout: %w", err))
	}
	return result
}
