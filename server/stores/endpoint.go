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

package stores

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ferry-db/ferry/pkg/errors"
)

// ErrInvalidEndpoint is returned when an endpoint URL cannot be used to
// reach a document store.
var ErrInvalidEndpoint = errors.InvalidArgument("invalid endpoint").WithCode("ErrInvalidEndpoint")

// Endpoint schemes understood by the server.
const (
	SchemeHTTP   = "http"
	SchemeHTTPS  = "https"
	SchemeMemory = "memory"
)

// Endpoint is a reference to a document store. Two endpoints naming the
// same logical store through different credentials compare equal.
type Endpoint struct {
	url *url.URL
}

// ParseEndpoint parses and validates a store URL.
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse endpoint %q: %w", raw, ErrInvalidEndpoint)
	}

	switch u.Scheme {
	case SchemeHTTP, SchemeHTTPS, SchemeMemory:
	default:
		return Endpoint{}, fmt.Errorf("endpoint %q: unsupported scheme %q: %w", raw, u.Scheme, ErrInvalidEndpoint)
	}

	if u.Host == "" {
		return Endpoint{}, fmt.Errorf("endpoint %q: missing host: %w", raw, ErrInvalidEndpoint)
	}

	return Endpoint{url: u}, nil
}

// MustParseEndpoint is ParseEndpoint for statically known inputs.
func MustParseEndpoint(raw string) Endpoint {
	ep, err := ParseEndpoint(raw)
	if err != nil {
		panic(err)
	}
	return ep
}

// IsZero returns true for the zero endpoint.
func (e Endpoint) IsZero() bool {
	return e.url == nil
}

// Scheme returns the endpoint scheme.
func (e Endpoint) Scheme() string {
	if e.url == nil {
		return ""
	}
	return e.url.Scheme
}

// URL returns a copy of the underlying URL, credentials included.
func (e Endpoint) URL() *url.URL {
	if e.url == nil {
		return nil
	}
	clone := *e.url
	return &clone
}

// String renders the endpoint with the password redacted, safe for logs and
// task listings.
func (e Endpoint) String() string {
	if e.url == nil {
		return ""
	}
	clone := *e.url
	if clone.User != nil {
		if _, has := clone.User.Password(); has {
			clone.User = url.UserPassword(clone.User.Username(), "xxxxx")
		}
	}
	return clone.String()
}

// Normalized returns the comparison key of the endpoint: lowercased host
// with its default port filled in, plus the path with any trailing slash
// trimmed. Credentials, query and fragment are excluded so differently
// authenticated URLs to the same logical database match.
func (e Endpoint) Normalized() string {
	if e.url == nil {
		return ""
	}

	host := strings.ToLower(e.url.Hostname())
	port := e.url.Port()
	if port == "" {
		switch e.url.Scheme {
		case SchemeHTTP:
			port = "80"
		case SchemeHTTPS:
			port = "443"
		}
	}

	path := strings.TrimSuffix(e.url.Path, "/")
	if port == "" {
		return host + path
	}
	return host + ":" + port + path
}

// Equal reports whether both endpoints name the same logical store.
func (e Endpoint) Equal(other Endpoint) bool {
	if e.url == nil || other.url == nil {
		return e.url == other.url
	}
	return e.Normalized() == other.Normalized()
}

// BasicAuth returns the credentials carried by the endpoint URL, if any.
func (e Endpoint) BasicAuth() (user, password string, ok bool) {
	if e.url == nil || e.url.User == nil {
		return "", "", false
	}
	password, _ = e.url.User.Password()
	return e.url.User.Username(), password, true
}
