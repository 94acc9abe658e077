/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package metrics holds the Prometheus collectors fhctl updates while it
// works. A run can dump them for the node-exporter textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Registry holds every fhctl collector. It is separate from the
	// default registry so textfile output carries no Go runtime metrics.
	Registry = prometheus.NewRegistry()

	CatalogRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhctl_catalog_requests_total",
			Help: "Mod catalog requests by result.",
		},
		[]string{"result"},
	)

	ModsResolved = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fhctl_mods_resolved",
			Help: "Number of mods in the last resolved install set.",
		},
	)

	DownloadBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fhctl_download_bytes_total",
			Help: "Bytes of mod archives written to the staging directory.",
		},
	)

	DownloadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fhctl_download_duration_seconds",
			Help:    "Time taken to download one mod archive.",
			Buckets: prometheus.DefBuckets,
		},
	)

	UpgradeSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhctl_upgrade_steps_applied_total",
			Help: "Server upgrade steps by result.",
		},
		[]string{"result"},
	)

	MergeLinks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fhctl_merge_links",
			Help: "Symbolic links created by the last mods merge.",
		},
	)
)

func init() {
	Registry.MustRegister(
		CatalogRequests,
		ModsResolved,
		DownloadBytes,
		DownloadDuration,
		UpgradeSteps,
		MergeLinks,
	)
}

// WriteTextfile writes every collector to path in the text exposition
// format. The file is replaced atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
