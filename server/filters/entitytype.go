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

package filters

import (
	"strings"

	"github.com/ferry-db/ferry/pkg/document"
)

// KindEntityType is the registry key of the built-in entity type filter.
const KindEntityType = "entity_type"

// paramTypes is the configuration parameter holding the accepted tokens.
const paramTypes = "types"

func init() {
	Register(&entityTypeFilter{})
}

// entityTypeFilter accepts documents whose entity type matches one of the
// configured "{type}" or "{type}.{subtype}" tokens. Empty or missing
// configuration accepts nothing: an empty list must not silently replicate
// everything.
type entityTypeFilter struct{}

// Kind returns the registry key of this filter.
func (f *entityTypeFilter) Kind() string {
	return KindEntityType
}

// RequiresBody is true: the type fields live in the document body.
func (f *entityTypeFilter) RequiresBody() bool {
	return true
}

// Accepts reports whether the document's (type, subtype) matches a token.
func (f *entityTypeFilter) Accepts(doc *document.Document, spec Spec) (bool, error) {
	tokens := parseTypeTokens(spec.Params[paramTypes])
	if len(tokens) == 0 {
		return false, nil
	}

	docType := doc.Type()
	if docType == "" {
		return false, nil
	}
	pair := docType + "." + doc.Subtype()

	for _, token := range tokens {
		if token == docType || token == pair {
			return true, nil
		}
	}
	return false, nil
}

// parseTypeTokens splits a comma-separated token list, stripping whitespace
// and trimming leading/trailing dots. Tokens emptied by the cleanup are
// dropped.
func parseTypeTokens(raw string) []string {
	var tokens []string
	for _, part := range strings.Split(raw, ",") {
		token := strings.Trim(strings.ReplaceAll(part, " ", ""), ".")
		token = strings.ReplaceAll(token, "\t", "")
		if token == "" {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}
