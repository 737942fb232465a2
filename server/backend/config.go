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

package backend

import (
	"fmt"
	"time"
)

// Config is the configuration for creating a Backend instance.
type Config struct {
	// BatchSize is the maximum number of change events a replication task
	// reads from the source before writing them to the target and saving a
	// checkpoint.
	BatchSize int `yaml:"BatchSize"`

	// RetryMaxAttempts is the max count that retries a transient store failure.
	RetryMaxAttempts int `yaml:"RetryMaxAttempts"`

	// RetryBaseInterval is the initial interval that waits before retrying a
	// transient store failure. The interval doubles on each retry.
	RetryBaseInterval string `yaml:"RetryBaseInterval"`

	// RetryMaxInterval is the upper bound of the retry interval.
	RetryMaxInterval string `yaml:"RetryMaxInterval"`

	// StoreConnectTimeout is the timeout for establishing connections to
	// remote stores.
	StoreConnectTimeout string `yaml:"StoreConnectTimeout"`

	// StoreRequestTimeout is the timeout for a single request to a remote
	// store.
	StoreRequestTimeout string `yaml:"StoreRequestTimeout"`

	// Hostname is ferry server hostname. hostname is used by metrics.
	Hostname string `yaml:"Hostname"`
}

// Validate validates this config.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf(`invalid argument %d for "--backend-batch-size" flag: must be positive`, c.BatchSize)
	}

	if c.RetryMaxAttempts < 0 {
		return fmt.Errorf(
			`invalid argument %d for "--backend-retry-max-attempts" flag: must not be negative`,
			c.RetryMaxAttempts,
		)
	}

	if _, err := time.ParseDuration(c.RetryBaseInterval); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--backend-retry-base-interval" flag: %w`,
			c.RetryBaseInterval,
			err,
		)
	}

	if _, err := time.ParseDuration(c.RetryMaxInterval); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--backend-retry-max-interval" flag: %w`,
			c.RetryMaxInterval,
			err,
		)
	}

	if _, err := time.ParseDuration(c.StoreConnectTimeout); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--store-connect-timeout" flag: %w`,
			c.StoreConnectTimeout,
			err,
		)
	}

	if _, err := time.ParseDuration(c.StoreRequestTimeout); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--store-request-timeout" flag: %w`,
			c.StoreRequestTimeout,
			err,
		)
	}

	return nil
}

// ParseRetryBaseInterval returns the base retry interval.
func (c *Config) ParseRetryBaseInterval() time.Duration {
	result, err := time.ParseDuration(c.RetryBaseInterval)
	if err != nil {
		panic("must be validated before")
	}

	return result
}

// ParseRetryMaxInterval returns the max retry interval.
func (c *Config) ParseRetryMaxInterval() time.Duration {
	result, err := time.ParseDuration(c.RetryMaxInterval)
	if err != nil {
		panic("must be validated before")
	}

	return result
}

// ParseStoreConnectTimeout returns timeout for connecting to remote stores.
func (c *Config) ParseStoreConnectTimeout() time.Duration {
	result, err := time.ParseDuration(c.StoreConnectTimeout)
	if err != nil {
		panic("must be validated before")
	}

	return result
}

// ParseStoreRequestTimeout returns timeout for a single remote store request.
func (c *Config) ParseStoreRequestTimeout() time.Duration {
	result, err := time.ParseDuration(c.StoreRequestTimeout)
	if err != nil {
		panic("must be validated before")
	}

	return result
}
