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

package memory

import (
	"fmt"
	"sync"
)

// shared holds the in-process stores addressable as memory://{name}. Both
// sides of a replication resolving the same name share one store.
var shared = struct {
	sync.Mutex
	stores map[string]*Store
}{stores: make(map[string]*Store)}

// Shared returns the store registered under name, creating it on first use.
func Shared(name string) (*Store, error) {
	shared.Lock()
	defer shared.Unlock()

	if s, ok := shared.stores[name]; ok {
		return s, nil
	}

	s, err := New()
	if err != nil {
		return nil, fmt.Errorf("create shared store %s: %w", name, err)
	}
	shared.stores[name] = s
	return s, nil
}

// Drop removes the store registered under name. Used by tests to start from
// a clean slate.
func Drop(name string) {
	shared.Lock()
	defer shared.Unlock()
	delete(shared.stores, name)
}
