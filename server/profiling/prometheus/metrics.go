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

// Package prometheus provides a Prometheus metrics exporter.
package prometheus

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ferry-db/ferry/internal/version"
)

const (
	namespace          = "ferry"
	replicationIDLabel = "replication_id"
	taskTypeLabel      = "task_type"
	statusLabel        = "status"
)

// Metrics manages the metric information that Ferry is trying to measure.
type Metrics struct {
	registry *prometheus.Registry

	serverVersion *prometheus.GaugeVec

	tasksActiveTotal   prometheus.Gauge
	tasksFinishedTotal *prometheus.CounterVec

	docsWrittenTotal    *prometheus.CounterVec
	docsSkippedTotal    *prometheus.CounterVec
	conflictsTotal      *prometheus.CounterVec
	checkpointsSavedSeq *prometheus.GaugeVec

	backgroundGoroutinesTotal *prometheus.GaugeVec
}

// NewMetrics creates a new instance of Metrics.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	metrics := &Metrics{
		registry: reg,
		serverVersion: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "version",
			Help:      "Which version is running. 1 for 'server_version' label with current version.",
		}, []string{"server_version"}),
		tasksActiveTotal: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "tasks_active_total",
			Help:      "The number of replication tasks currently streaming.",
		}),
		tasksFinishedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "tasks_finished_total",
			Help:      "The total number of replication tasks finished, by final status.",
		}, []string{statusLabel}),
		docsWrittenTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "docs_written_total",
			Help:      "The total number of documents written to targets.",
		}, []string{replicationIDLabel}),
		docsSkippedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "docs_skipped_total",
			Help:      "The total number of change events rejected by filters.",
		}, []string{replicationIDLabel}),
		conflictsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "conflicts_total",
			Help:      "The total number of revision conflicts detected on targets.",
		}, []string{replicationIDLabel}),
		checkpointsSavedSeq: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "checkpoint_last_seq",
			Help:      "The last source sequence durably checkpointed.",
		}, []string{replicationIDLabel}),
		backgroundGoroutinesTotal: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "background",
			Name:      "goroutines_total",
			Help:      "The total number of background routines attached by task type.",
		}, []string{taskTypeLabel}),
	}

	metrics.serverVersion.With(prometheus.Labels{
		"server_version": version.Version,
	}).Set(1)

	return metrics, nil
}

// AddActiveTask increments the active task gauge.
func (m *Metrics) AddActiveTask() {
	m.tasksActiveTotal.Inc()
}

// RemoveActiveTask decrements the active task gauge and counts the final
// status.
func (m *Metrics) RemoveActiveTask(status string) {
	m.tasksActiveTotal.Dec()
	m.tasksFinishedTotal.With(prometheus.Labels{statusLabel: status}).Inc()
}

// AddDocsWritten adds to the written documents counter of a replication.
func (m *Metrics) AddDocsWritten(replicationID string, count uint64) {
	m.docsWrittenTotal.With(prometheus.Labels{replicationIDLabel: replicationID}).Add(float64(count))
}

// AddDocsSkipped adds to the skipped documents counter of a replication.
func (m *Metrics) AddDocsSkipped(replicationID string, count uint64) {
	m.docsSkippedTotal.With(prometheus.Labels{replicationIDLabel: replicationID}).Add(float64(count))
}

// AddConflicts adds to the detected conflicts counter of a replication.
func (m *Metrics) AddConflicts(replicationID string, count uint64) {
	m.conflictsTotal.With(prometheus.Labels{replicationIDLabel: replicationID}).Add(float64(count))
}

// SetCheckpointSeq records the last durably checkpointed sequence.
func (m *Metrics) SetCheckpointSeq(replicationID string, seq uint64) {
	m.checkpointsSavedSeq.With(prometheus.Labels{replicationIDLabel: replicationID}).Set(float64(seq))
}

// AddBackgroundGoroutines adds the number of background goroutines for the
// given task type.
func (m *Metrics) AddBackgroundGoroutines(taskType string) {
	m.backgroundGoroutinesTotal.With(prometheus.Labels{taskTypeLabel: taskType}).Inc()
}

// RemoveBackgroundGoroutines removes the number of background goroutines
// for the given task type.
func (m *Metrics) RemoveBackgroundGoroutines(taskType string) {
	m.backgroundGoroutinesTotal.With(prometheus.Labels{taskTypeLabel: taskType}).Dec()
}

// Registry returns the registry of this metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
