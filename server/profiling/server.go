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

package profiling

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	gotime "time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ferry-db/ferry/server/logging"
	"github.com/ferry-db/ferry/server/profiling/prometheus"
)

const httpPrefixMetrics = "/metrics"

// Server serves information for profiling, such as metrics and pprof.
type Server struct {
	conf       *Config
	serverMux  *http.ServeMux
	httpServer *http.Server
}

// NewServer creates an instance of Server.
func NewServer(conf *Config, metrics *prometheus.Metrics) *Server {
	serverMux := http.NewServeMux()
	serverMux.Handle(httpPrefixMetrics, promhttp.HandlerFor(
		metrics.Registry(),
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	))

	if conf.EnablePprof {
		serverMux.Handle("/debug/pprof/", http.HandlerFunc(pprof.Index))
		serverMux.Handle("/debug/pprof/profile", http.HandlerFunc(pprof.Profile))
		serverMux.Handle("/debug/pprof/symbol", http.HandlerFunc(pprof.Symbol))
		serverMux.Handle("/debug/pprof/cmdline", http.HandlerFunc(pprof.Cmdline))
		serverMux.Handle("/debug/pprof/trace", http.HandlerFunc(pprof.Trace))
		serverMux.Handle("/debug/pprof/allocs", pprof.Handler("allocs"))
		serverMux.Handle("/debug/pprof/block", pprof.Handler("block"))
		serverMux.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		serverMux.Handle("/debug/pprof/heap", pprof.Handler("heap"))
		serverMux.Handle("/debug/pprof/mutex", pprof.Handler("mutex"))
		serverMux.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	}

	return &Server{
		conf:      conf,
		serverMux: serverMux,
	}
}

// Start starts the server.
func (s *Server) Start() error {
	return s.listenAndServe()
}

// Shutdown shuts down the server.
func (s *Server) Shutdown(graceful bool) {
	if graceful {
		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			logging.DefaultLogger().Error("HTTP server Shutdown: %v", err)
		}
		return
	}

	if err := s.httpServer.Close(); err != nil {
		logging.DefaultLogger().Error("HTTP server close: %v", err)
	}
}

func (s *Server) listenAndServe() error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.conf.Port),
		Handler:           s.serverMux,
		ReadHeaderTimeout: 10 * gotime.Second,
	}

	go func() {
		logging.DefaultLogger().Infof(fmt.Sprintf("serving profiling on %d", s.conf.Port))
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.DefaultLogger().Error("HTTP server ListenAndServe: %v", err)
		}
	}()
	return nil
}
