// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cas

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ==============================================================================
// Prometheus Metrics
// ==============================================================================

var (
	// objectWriteTotal counts object writes by kind and result. The
	// "dedup" result is a write skipped because the id already existed.
	objectWriteTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blendvault_cas_object_write_total",
		Help: "Total object writes by kind and result",
	}, []string{"kind", "result"})

	// objectReadTotal counts object reads by kind and result.
	objectReadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blendvault_cas_object_read_total",
		Help: "Total object reads by kind and result",
	}, []string{"kind", "result"})

	// refUpdateTotal counts branch ref updates by result.
	refUpdateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blendvault_cas_ref_update_total",
		Help: "Total branch ref updates by result",
	}, []string{"result"})

	// treeWriteDuration tracks full tree flush latency.
	treeWriteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "blendvault_cas_tree_write_duration_seconds",
		Help:    "Tree flush duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})
)
