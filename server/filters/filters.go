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

// Package filters provides the pluggable predicate deciding whether a
// document participates in a replication. Filters are pure functions of the
// document and their static configuration so feed processing stays
// deterministic.
package filters

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ferry-db/ferry/internal/validation"
	"github.com/ferry-db/ferry/pkg/document"
	"github.com/ferry-db/ferry/pkg/errors"
)

// ErrUnknownFilter is returned when a task names a filter kind that has not
// been registered. An unknown kind is a configuration error, never a silent
// no-op.
var ErrUnknownFilter = errors.InvalidArgument("unknown filter kind").WithCode("ErrUnknownFilter")

// Spec is the opaque filter configuration carried by a replication task and
// interpreted by the named filter implementation.
type Spec struct {
	Kind   string            `json:"kind" yaml:"Kind" validate:"required,filter_kind"`
	Params map[string]string `json:"params,omitempty" yaml:"Params"`
}

// Validate checks the spec against the registered filter kinds.
func (s *Spec) Validate() error {
	if err := validation.ValidateStruct(s); err != nil {
		return fmt.Errorf("%s: %w", err, ErrUnknownFilter)
	}
	if _, err := Lookup(s.Kind); err != nil {
		return err
	}
	return nil
}

// Fingerprint returns a canonical rendering of the spec used for the
// replication identity digest. Params are serialized in sorted key order so
// equivalent specs always fingerprint identically.
func (s *Spec) Fingerprint() string {
	if s == nil {
		return ""
	}

	keys := make([]string, 0, len(s.Params))
	for k := range s.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := s.Kind
	for _, k := range keys {
		out += fmt.Sprintf("|%s=%s", k, s.Params[k])
	}
	return out
}

// Filter decides whether a document participates in a replication. Accepts
// must not mutate the document or consult external state.
type Filter interface {
	// Kind returns the registry key of this filter.
	Kind() string

	// Accepts reports whether the document passes the filter under the
	// given configuration.
	Accepts(doc *document.Document, spec Spec) (bool, error)

	// RequiresBody reports whether the filter needs the document body, or
	// can decide on (id, revision, deleted) metadata alone. It drives the
	// change feed's include_docs trade-off.
	RequiresBody() bool
}

var registry = struct {
	sync.RWMutex
	kinds map[string]Filter
}{kinds: make(map[string]Filter)}

// Register adds a filter implementation to the registry. Registration
// happens at process start; a duplicate kind is a programming error.
func Register(f Filter) {
	registry.Lock()
	defer registry.Unlock()

	if _, ok := registry.kinds[f.Kind()]; ok {
		panic(fmt.Sprintf("filter kind %q registered twice", f.Kind()))
	}
	registry.kinds[f.Kind()] = f
}

// Lookup returns the filter registered under the given kind.
func Lookup(kind string) (Filter, error) {
	registry.RLock()
	defer registry.RUnlock()

	f, ok := registry.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("filter kind %q: %w", kind, ErrUnknownFilter)
	}
	return f, nil
}
