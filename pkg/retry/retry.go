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

// Package retry provides bounded exponential backoff for operations against
// remote collaborators.
package retry

import (
	"fmt"
	"math"
	gotime "time"

	"context"

	"github.com/ferry-db/ferry/pkg/errors"
)

// WithExponentialBackoff runs fn, retrying transient failures with
// exponential backoff until maxRetries is exhausted or the context is done.
// Only errors classified retryable by pkg/errors are retried; anything else
// is returned as-is.
func WithExponentialBackoff(
	ctx context.Context,
	maxRetries uint64,
	baseInterval, maxInterval gotime.Duration,
	fn func() error,
) error {
	var retries uint64
	var lastErr error
	for retries <= maxRetries {
		lastErr = fn()
		if lastErr == nil || !errors.IsRetryable(lastErr) {
			return lastErr
		}

		waitBeforeRetry := waitInterval(retries, baseInterval, maxInterval)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-gotime.After(waitBeforeRetry):
		}

		retries++
	}

	return fmt.Errorf("retries exhausted after %d attempts: %w", maxRetries+1, lastErr)
}

// waitInterval returns the interval of the given retry, capped at
// maxWaitInterval.
func waitInterval(retries uint64, baseInterval, maxWaitInterval gotime.Duration) gotime.Duration {
	interval := gotime.Duration(math.Pow(2, float64(retries))) * baseInterval
	if maxWaitInterval < interval {
		return maxWaitInterval
	}

	return interval
}
