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

package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	gotime "time"

	"github.com/ferry-db/ferry/api/types"
	"github.com/ferry-db/ferry/pkg/errors"
	"github.com/ferry-db/ferry/server/filters"
	"github.com/ferry-db/ferry/server/logging"
	"github.com/ferry-db/ferry/server/replication"
	"github.com/ferry-db/ferry/server/stores"
)

// Server serves the administrative HTTP JSON API.
type Server struct {
	conf       *Config
	replicator *replication.Replicator
	serverMux  *http.ServeMux
	httpServer *http.Server
}

// NewServer creates an instance of Server.
func NewServer(conf *Config, replicator *replication.Replicator) *Server {
	s := &Server{
		conf:       conf,
		replicator: replicator,
		serverMux:  http.NewServeMux(),
	}

	s.serverMux.HandleFunc("POST /replications", s.handleStart)
	s.serverMux.HandleFunc("DELETE /replications", s.handleStop)
	s.serverMux.HandleFunc("GET /replications", s.handleActive)
	s.serverMux.HandleFunc("DELETE /replications/{id}", s.handleClear)

	return s
}

// Start starts the server.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.conf.Port),
		Handler:           s.serverMux,
		ReadHeaderTimeout: 10 * gotime.Second,
	}

	go func() {
		logging.DefaultLogger().Infof("serving admin on %d", s.conf.Port)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.DefaultLogger().Error("HTTP server ListenAndServe: %v", err)
		}
	}()
	return nil
}

// Shutdown shuts down the server.
func (s *Server) Shutdown(graceful bool) {
	if s.httpServer == nil {
		return
	}
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

// Handler returns the underlying mux for tests.
func (s *Server) Handler() http.Handler {
	return s.serverMux
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req types.StartReplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decode request: "+err.Error(), "")
		return
	}

	source, err := stores.ParseEndpoint(req.Source)
	if err != nil {
		writeStatusError(w, err)
		return
	}
	target, err := stores.ParseEndpoint(req.Target)
	if err != nil {
		writeStatusError(w, err)
		return
	}

	task := replication.Task{
		Source:       source,
		Target:       target,
		Continuous:   req.Continuous,
		CreateTarget: req.CreateTarget,
	}
	if req.Filter != nil {
		task.Filter = &filters.Spec{
			Kind:   req.Filter.Kind,
			Params: req.Filter.Params,
		}
	}

	info, err := s.replicator.Start(r.Context(), task)
	if err != nil {
		writeStatusError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, toWireTask(info))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	source, err := stores.ParseEndpoint(query.Get("source"))
	if err != nil {
		writeStatusError(w, err)
		return
	}
	target, err := stores.ParseEndpoint(query.Get("target"))
	if err != nil {
		writeStatusError(w, err)
		return
	}
	continuous := query.Get("continuous") == "true"

	info, err := s.replicator.Stop(source, target, continuous)
	if err != nil {
		writeStatusError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toWireTask(info))
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var source, target *stores.Endpoint
	if raw := query.Get("source"); raw != "" {
		ep, err := stores.ParseEndpoint(raw)
		if err != nil {
			writeStatusError(w, err)
			return
		}
		source = &ep
	}
	if raw := query.Get("target"); raw != "" {
		ep, err := stores.ParseEndpoint(raw)
		if err != nil {
			writeStatusError(w, err)
			return
		}
		target = &ep
	}

	infos, err := s.replicator.Active(source, target)
	if err != nil {
		writeStatusError(w, err)
		return
	}

	tasks := make([]*types.ReplicationTask, 0, len(infos))
	for _, info := range infos {
		tasks = append(tasks, toWireTask(info))
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	cleared, err := s.replicator.Clear(r.PathValue("id"))
	if err != nil {
		writeStatusError(w, err)
		return
	}
	if !cleared {
		writeError(w, http.StatusNotFound, "task not found", "ErrTaskNotFound")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toWireTask(info *replication.TaskInfo) *types.ReplicationTask {
	return &types.ReplicationTask{
		ID:            info.ID,
		ReplicationID: info.ReplicationID,
		Source:        info.Source.String(),
		Target:        info.Target.String(),
		Continuous:    info.Continuous,
		StartedOn:     info.StartedOn.Format(gotime.RFC1123),
		Status:        string(info.Status),
		DocsWritten:   info.DocsWritten,
		DocsSkipped:   info.DocsSkipped,
		Conflicts:     info.Conflicts,
		LastError:     info.LastError,
	}
}

// writeStatusError renders a classified error. Pre-flight and configuration
// failures are the caller's fault; everything else is a server-side state.
func writeStatusError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.StatusOf(err) {
	case errors.ErrCodeInvalidArgument:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeAlreadyExists:
		status = http.StatusConflict
	case errors.ErrCodeFailedPrecondition:
		status = http.StatusConflict
	case errors.ErrCodeUnavailable:
		// a failed existence probe means the request named bad endpoints
		status = http.StatusBadRequest
	case errors.ErrCodeDeadlineExceeded:
		status = http.StatusGatewayTimeout
	}
	writeError(w, status, err.Error(), errors.CodeOf(err))
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, &types.ErrorResponse{Message: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.DefaultLogger().Warnf("encode admin response: %v", err)
	}
}
